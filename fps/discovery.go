package fps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brutella/dnssd"
	"github.com/jochenvg/go-udev"
)

// resolveAddress turns a configured channel address into a concrete
// device path or network address. Two conventions are recognised in
// addition to a literal path: "auto" triggers local udev enumeration
// for a serial-over-USB gateway, and "dnssd:<service>" browses for a
// gateway advertising that mDNS service type.
func resolveAddress(ctx context.Context, address string) (string, error) {
	switch {
	case address == "auto":
		return discoverLocalGateway(ctx)
	case strings.HasPrefix(address, "dnssd:"):
		return discoverDNSSDGateway(ctx, strings.TrimPrefix(address, "dnssd:"))
	default:
		return address, nil
	}
}

// discoverLocalGateway enumerates local USB-serial devices via udev
// and returns the first one that looks like a CAN gateway adapter.
func discoverLocalGateway(ctx context.Context) (string, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()

	if err := enum.AddMatchSubsystem("tty"); err != nil {
		return "", fmt.Errorf("fps: udev enumerate tty: %w", err)
	}
	if err := enum.AddMatchProperty("ID_BUS", "usb"); err != nil {
		return "", fmt.Errorf("fps: udev enumerate usb: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return "", fmt.Errorf("fps: udev enumerate devices: %w", err)
	}

	for _, d := range devices {
		if path := d.Devnode(); path != "" {
			return path, nil
		}
	}

	return "", fmt.Errorf("fps: no local USB-serial gateway found via udev")
}

// discoverDNSSDGateway browses the local network for service and
// returns the address of the first instance found, or an error if
// none appears within a short timeout.
func discoverDNSSDGateway(ctx context.Context, service string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	found := make(chan string, 1)

	addFn := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		select {
		case found <- fmt.Sprintf("%s:%d", e.IPs[0], e.Port):
		default:
		}
	}
	rmvFn := func(e dnssd.BrowseEntry) {}

	go func() {
		_ = dnssd.LookupType(ctx, service, addFn, rmvFn)
	}()

	select {
	case addr := <-found:
		return addr, nil
	case <-ctx.Done():
		return "", fmt.Errorf("fps: no dnssd instance of %q found: %w", service, ctx.Err())
	}
}
