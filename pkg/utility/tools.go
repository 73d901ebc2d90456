package utility

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ebobo/cellular_go/pkg/model"
)

func MakeDirIfNotExists(dirpath string) error {
	if _, err := os.Stat(dirpath); os.IsNotExist(err) {
		err := os.MkdirAll(dirpath, os.ModeDir|0o755)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it into place
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FakeModule describes a made up cellular module, used when running without hardware
type FakeModule struct {
	Module model.ModuleInfo
	Static model.StaticInfo
	Serial string
}

func GenerateFakeModule(wwanNode string) FakeModule {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return FakeModule{
		Module: model.ModuleInfo{
			Module:   model.FirmwareSwitchableModule,
			WWANNode: wwanNode,
			IMEI:     generateIMEI(rnd),
			ESN:      "",
			MAC:      generateMacAddress(rnd),
		},
		Static: model.StaticInfo{
			IMSI:           generateIMSI(rnd),
			ICCID:          generateICCID(rnd),
			PINRetryRemain: 3,
		},
		Serial: uuid.New().String(),
	}
}

func generateIMEI(rnd *rand.Rand) string {
	return fmt.Sprintf("%015d", rnd.Int63n(1e15))
}

func generateIMSI(rnd *rand.Rand) string {
	// MCC 001 / MNC 01 is reserved for test networks
	return "00101" + fmt.Sprintf("%010d", rnd.Int63n(1e10))
}

func generateICCID(rnd *rand.Rand) string {
	section1 := rnd.Int63n(1e9)
	section2 := rnd.Int63n(1e10)
	return fmt.Sprintf("89%09d%010d", section1, section2)
}

func generateMacAddress(rnd *rand.Rand) string {
	b := make([]string, 6)
	for i := range b {
		b[i] = fmt.Sprintf("%02x", rnd.Intn(256))
	}
	// locally administered, unicast
	b[0] = fmt.Sprintf("%02x", (rnd.Intn(256)|0x02)&0xfe)
	return strings.Join(b, ":")
}
