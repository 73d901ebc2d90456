// Package watchdog writes the monit check that reboots the gateway when the
// cellular link stops answering pings.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ebobo/cellular_go/pkg/utility"
)

const (
	DefaultPath    = "/etc/monit/conf.d/keepalive"
	DefaultService = "monit"

	pingCount      = 3
	pingTimeoutSec = 20

	restartTimeout = 30 * time.Second
)

const checkTemplate = `check program ping-test with path "/bin/ping %s%s -c %d -W %d"
    if status != 0
    then exec "/bin/bash -c '/usr/sbin/cell_mgmt power_off force && /bin/sleep 5 && /sbin/reboot -i -f -d'"
    every %d cycles
`

// Restarter restarts the supervising service so it rereads its configuration
type Restarter interface {
	Restart() error
}

// ServiceRestarter restarts a sysv service through the service command
type ServiceRestarter struct {
	Name string
}

func (r ServiceRestarter) Restart() error {
	ctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "service", r.Name, "restart").CombinedOutput()
	if err != nil {
		return fmt.Errorf("service %s restart: %w: %s", r.Name, err, out)
	}
	return nil
}

// Generator owns the monit check file
type Generator struct {
	Path      string
	Restarter Restarter
}

// New returns a Generator writing path and restarting the named service
func New(path string, service string) *Generator {
	return &Generator{
		Path:      path,
		Restarter: ServiceRestarter{Name: service},
	}
}

// Render returns the check definition for the given target
func Render(targetHost string, iface string, cycles int) string {
	ifaceFlag := ""
	if iface != "" {
		ifaceFlag = " -I " + iface
	}
	return fmt.Sprintf(checkTemplate, targetHost, ifaceFlag, pingCount, pingTimeoutSec, cycles)
}

// Generate installs or removes the check and then restarts monit. The restart
// happens even when nothing changed, monit only picks up its files on restart.
func (g *Generator) Generate(enabled bool, targetHost string, iface string, cycles int) error {
	if !enabled {
		err := os.Remove(g.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to remove %s: %w", g.Path, err)
		}
		log.Printf("keepalive watchdog disabled")
		return g.Restarter.Restart()
	}

	err := utility.MakeDirIfNotExists(filepath.Dir(g.Path))
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", filepath.Dir(g.Path), err)
	}

	err = utility.WriteFileAtomic(g.Path, []byte(Render(targetHost, iface, cycles)), 0o644)
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", g.Path, err)
	}
	log.Printf("keepalive watchdog enabled, target %s every %d cycles", targetHost, cycles)

	return g.Restarter.Restart()
}
