package cellular

import (
	"fmt"
	"log"

	"github.com/ebobo/cellular_go/pkg/model"
)

// Firmware describes the firmware images of resource id. Modules other than
// the MC7354 cannot switch images and get a fixed descriptor.
func (c *Controller) Firmware(id int) (model.Firmware, error) {
	if !c.Initialized() || id != model.ResourceID {
		return model.Firmware{}, ErrNotFound
	}

	info, err := c.modem.ModuleInfo(c.ctx)
	if err != nil {
		return model.Firmware{}, fmt.Errorf("unable to read module info: %w", err)
	}
	if info.Module != model.FirmwareSwitchableModule {
		return model.Firmware{Switchable: false}, nil
	}

	fw, err := c.modem.Firmware(c.ctx)
	if err != nil {
		return model.Firmware{}, fmt.Errorf("unable to read firmware info: %w", err)
	}
	return fw, nil
}

// SwitchFirmware starts switching the firmware image and returns without
// waiting for the modem.
func (c *Controller) SwitchFirmware(id int, fw model.FirmwareSwitch) error {
	if !c.Initialized() || id != model.ResourceID {
		return ErrNotFound
	}
	if err := model.ValidateFirmwareSwitch(fw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		log.Printf("switching firmware to %s (config %s, carrier %s)", fw.FWVer, fw.Config, fw.Carrier)
		if err := c.modem.SetFirmware(c.ctx, fw); err != nil {
			log.Printf("failed to switch firmware: %v", err)
			return
		}
		log.Printf("firmware switch to %s done", fw.FWVer)
	}()

	return nil
}
