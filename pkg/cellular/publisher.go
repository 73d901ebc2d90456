package cellular

import (
	"log"

	"github.com/ebobo/cellular_go/pkg/model"
)

// NetworkInterfaceResource is the event resource of a network interface
func NetworkInterfaceResource(name string) string {
	return "/network/interfaces/" + name
}

// publishNetworkInfo is the callback handed to every manager. Events for an
// unknown device are dropped.
func (c *Controller) publishNetworkInfo(info model.NetworkInfo) {
	name := c.devName
	if name == "" {
		log.Printf("device name not available, dropping network info")
		c.metrics.EventsPublished.WithLabelValues("dropped").Inc()
		return
	}

	dns := info.DNS
	if dns == nil {
		dns = []string{}
	}
	event := model.NetworkInterface{
		Name:    name,
		WAN:     true,
		Type:    "cellular",
		Mode:    "dhcp",
		Status:  info.Status,
		IP:      info.IP,
		Netmask: info.Netmask,
		Gateway: info.Gateway,
		DNS:     dns,
	}

	log.Printf("publish network info: %+v", event)
	if err := c.events.Put(NetworkInterfaceResource(name), event); err != nil {
		log.Printf("failed to publish network info for %s: %v", name, err)
		c.metrics.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	c.metrics.EventsPublished.WithLabelValues("ok").Inc()
}
