// Package discovery 在局域网内通过 mDNS 广播与发现 relay
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"doodlesync/logging"
)

const ServiceType = "_doodlesync._tcp"

// Relay 发现到的 relay 地址与 TXT 信息
type Relay struct {
	Instance string
	Addr     string // host:port
	Info     []string
}

// URL 对应的 WebSocket 端点
func (r Relay) URL() string { return "ws://" + r.Addr + "/ws" }

// Advertise 广播 relay；instance 为空时使用主机名。调用方负责 Shutdown
func Advertise(instance string, port int, info ...string) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(info) == 0 {
		info = []string{"doodlesync relay"}
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	logging.Log.Infow("mdns advertising", "instance", instance, "service", ServiceType, "port", port)
	return server, nil
}

// Browse 查找 relay；等待时间取 timeout（默认 3s）与 ctx 截止时间中较短者
func Browse(ctx context.Context, timeout time.Duration) ([]Relay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() {
		errc <- mdns.Query(params)
		close(entries)
	}()

	seen := make(map[string]bool)
	var out []Relay
	for e := range entries {
		r, ok := toRelay(e)
		if !ok || seen[r.Addr] {
			continue
		}
		seen[r.Addr] = true
		out = append(out, r)
	}
	if err := <-errc; err != nil {
		return out, fmt.Errorf("mdns query: %w", err)
	}
	return out, nil
}

func toRelay(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Relay{}, false
	}
	return Relay{
		Instance: instanceName(e.Name),
		Addr:     net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
		Info:     e.InfoFields,
	}, true
}

// instanceName 从 "alice-laptop._doodlesync._tcp.local." 中取出实例名
func instanceName(full string) string {
	name, _, _ := strings.Cut(full, "."+ServiceType)
	return name
}
