package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	pinCodeRegex = regexp.MustCompile(`^[0-9]{4}$`)
)

func init() {
	validate = validator.New()

	// empty or exactly four digits
	_ = validate.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		pin := fl.Field().String()
		return pin == "" || pinCodeRegex.MatchString(pin)
	})
}

// ConfigRequest is a configuration as submitted by a client or read from a seed file.
// Pointer fields are the ones a request must carry; missing optional fields get the
// same defaults the stored configuration has always used.
type ConfigRequest struct {
	ID         *int               `json:"id,omitempty" yaml:"id"`
	Enable     *bool              `json:"enable" yaml:"enable" validate:"required"`
	PDPContext *PDPContextRequest `json:"pdpContext" yaml:"pdpContext" validate:"required"`
	PINCode    string             `json:"pinCode" yaml:"pinCode" validate:"pincode"`
	Keepalive  *KeepaliveRequest  `json:"keepalive" yaml:"keepalive" validate:"required"`
}

type PDPContextRequest struct {
	Static       *bool              `json:"static" yaml:"static" validate:"required"`
	ID           *int               `json:"id" yaml:"id" validate:"required"`
	RetryTimeout *int               `json:"retryTimeout" yaml:"retryTimeout" validate:"omitempty,eq=0|min=10,max=86399"`
	Primary      *PDPProfileRequest `json:"primary" yaml:"primary" validate:"required"`
	Secondary    *PDPProfileRequest `json:"secondary" yaml:"secondary"`
}

type PDPProfileRequest struct {
	APN  *string `json:"apn" yaml:"apn" validate:"omitempty,max=100"`
	Type string  `json:"type" yaml:"type" validate:"omitempty,oneof=ipv4 ipv6 ipv4v6"`
}

type KeepaliveRequest struct {
	Enable      *bool          `json:"enable" yaml:"enable" validate:"required"`
	TargetHost  *string        `json:"targetHost" yaml:"targetHost" validate:"required,max=255"`
	IntervalSec *int           `json:"intervalSec" yaml:"intervalSec" validate:"required,eq=0|min=60,max=86399"`
	Reboot      *RebootRequest `json:"reboot" yaml:"reboot"`
}

type RebootRequest struct {
	Enable *bool `json:"enable" yaml:"enable"`
	Cycles *int  `json:"cycles" yaml:"cycles" validate:"omitempty,min=0,max=48"`
}

// Validate checks the request against the configuration schema
func (r ConfigRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// an or-ed tag already carries its params
		if fe.Param() != "" && !strings.Contains(fe.Tag(), "|") {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Config fills in defaults and returns the configuration the request describes.
// The request must have passed Validate.
func (r ConfigRequest) Config() Config {
	c := Config{
		ID:      ResourceID,
		Enable:  *r.Enable,
		PINCode: r.PINCode,
		PDPContext: PDPContextConfig{
			Static:       *r.PDPContext.Static,
			ID:           *r.PDPContext.ID,
			RetryTimeout: 120,
			Primary:      r.PDPContext.Primary.profile("internet"),
			Secondary:    PDPProfile{Type: PDPTypeIPv4v6},
		},
		Keepalive: Keepalive{
			Enable:      *r.Keepalive.Enable,
			TargetHost:  *r.Keepalive.TargetHost,
			IntervalSec: *r.Keepalive.IntervalSec,
			Reboot:      Reboot{Enable: false, Cycles: 1},
		},
	}
	if r.PDPContext.RetryTimeout != nil {
		c.PDPContext.RetryTimeout = *r.PDPContext.RetryTimeout
	}
	if r.PDPContext.Secondary != nil {
		c.PDPContext.Secondary = r.PDPContext.Secondary.profile("")
	}
	if rb := r.Keepalive.Reboot; rb != nil {
		if rb.Enable != nil {
			c.Keepalive.Reboot.Enable = *rb.Enable
		}
		if rb.Cycles != nil {
			c.Keepalive.Reboot.Cycles = *rb.Cycles
		}
	}
	return c
}

func (p *PDPProfileRequest) profile(defaultAPN string) PDPProfile {
	out := PDPProfile{APN: defaultAPN, Type: PDPTypeIPv4v6}
	if p.APN != nil {
		out.APN = *p.APN
	}
	if p.Type != "" {
		out.Type = p.Type
	}
	return out
}

// ValidateFirmwareSwitch checks that a firmware switch names an image completely
func ValidateFirmwareSwitch(fs FirmwareSwitch) error {
	return validate.Struct(fs)
}
