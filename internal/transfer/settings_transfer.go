package transfer

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type SettingsUpdate struct {
	AutoApprovalEnabled   bool     `json:"auto_approval_enabled"`
	AutoApprovalPlatforms []string `json:"auto_approval_platforms"`
	Timezone              string   `json:"timezone"`
}

func (s SettingsUpdate) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AutoApprovalPlatforms, validation.Each(validation.In(platformNames...))),
		validation.Field(&s.Timezone, validation.By(validTimezone)),
	)
}

func validTimezone(value interface{}) error {
	tz, _ := value.(string)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return validation.NewError("validation_timezone", "must be an IANA time zone name")
	}
	return nil
}
