package kind

import (
	"errors"
	"strings"
)

type Controller uint8

const (
	Compliance Controller = iota
	Backup
	Promote
)

const (
	ComplianceStr = "compliance"
	BackupStr     = "backup"
	PromoteStr    = "promote"
)

var (
	ErrUnknownControllerKind = errors.New("unknown controller kind")
)

func (c Controller) String() string {
	switch c {
	case Compliance:
		return ComplianceStr
	case Backup:
		return BackupStr
	case Promote:
		return PromoteStr
	default:
		return "unknown"
	}
}

func FromString(str string) (Controller, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case ComplianceStr:
		return Compliance, nil
	case BackupStr:
		return Backup, nil
	case PromoteStr:
		return Promote, nil
	default:
		return 0, ErrUnknownControllerKind
	}
}
