// Package config loads and validates the static server configuration:
// a YAML file, LEASED_* environment overrides on top, then defaulting
// and validation. The result never changes after startup.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load resolves the configuration from the optional YAML file at path
// plus environment overrides.
func Load(path string) (Config, error) {
	var fc fileConfig

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&fc)
	return resolve(fc)
}

// applyEnv lets LEASED_* variables override file values, keyed the same
// way as the YAML fields.
func applyEnv(fc *fileConfig) {
	setIfEnv(&fc.Interface, "LEASED_INTERFACE")
	setIfEnv(&fc.Listen, "LEASED_LISTEN")
	setIfEnv(&fc.ServerIP, "LEASED_SERVER_IP")
	setIfEnv(&fc.SubnetMask, "LEASED_SUBNET_MASK")
	setIfEnv(&fc.Router, "LEASED_ROUTER")
	setIfEnv(&fc.DomainName, "LEASED_DOMAIN_NAME")
	setIfEnv(&fc.Pool.Start, "LEASED_POOL_START")
	setIfEnv(&fc.Pool.End, "LEASED_POOL_END")
	setIfEnv(&fc.LeaseTime, "LEASED_LEASE_TIME")
	setIfEnv(&fc.MaxLeaseTime, "LEASED_MAX_LEASE_TIME")
	setIfEnv(&fc.OfferHold, "LEASED_OFFER_HOLD")
	setIfEnv(&fc.DeclineHold, "LEASED_DECLINE_HOLD")
	setIfEnv(&fc.SweepEvery, "LEASED_SWEEP_EVERY")
	setIfEnv(&fc.AdminListen, "LEASED_ADMIN_LISTEN")
	setIfEnv(&fc.NATSURL, "LEASED_NATS_URL")

	if dns := os.Getenv("LEASED_DNS"); dns != "" {
		fc.DNS = strings.Split(dns, ",")
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func resolve(fc fileConfig) (Config, error) {
	cfg := Config{
		Interface:   fc.Interface,
		Listen:      fc.Listen,
		DomainName:  fc.DomainName,
		AdminListen: fc.AdminListen,
		NATSURL:     fc.NATSURL,
	}

	var err error
	if cfg.ServerIP, err = parseIP("server_ip", fc.ServerIP, true); err != nil {
		return Config{}, err
	}
	if cfg.Router, err = parseIP("router", fc.Router, false); err != nil {
		return Config{}, err
	}
	if cfg.PoolStart, err = parseIP("pool.start", fc.Pool.Start, true); err != nil {
		return Config{}, err
	}
	if cfg.PoolEnd, err = parseIP("pool.end", fc.Pool.End, true); err != nil {
		return Config{}, err
	}
	if ipCompare(cfg.PoolStart, cfg.PoolEnd) > 0 {
		return Config{}, fmt.Errorf("pool.start %v must not be after pool.end %v", cfg.PoolStart, cfg.PoolEnd)
	}

	if fc.SubnetMask != "" {
		mask := net.ParseIP(fc.SubnetMask)
		if mask == nil || mask.To4() == nil {
			return Config{}, fmt.Errorf("invalid subnet_mask: %q", fc.SubnetMask)
		}
		cfg.SubnetMask = net.IPMask(mask.To4())
	} else {
		cfg.SubnetMask = cfg.ServerIP.DefaultMask()
	}

	for _, s := range fc.DNS {
		ip, err := parseIP("dns", strings.TrimSpace(s), true)
		if err != nil {
			return Config{}, err
		}
		cfg.DNS = append(cfg.DNS, ip)
	}

	if cfg.LeaseTime, err = parseDuration("lease_time", fc.LeaseTime, 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MaxLeaseTime, err = parseDuration("max_lease_time", fc.MaxLeaseTime, 2*cfg.LeaseTime); err != nil {
		return Config{}, err
	}
	if cfg.OfferHold, err = parseDuration("offer_hold", fc.OfferHold, time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DeclineHold, err = parseDuration("decline_hold", fc.DeclineHold, 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepEvery, err = parseDuration("sweep_every", fc.SweepEvery, sweepDefault(cfg.LeaseTime)); err != nil {
		return Config{}, err
	}
	if cfg.MaxLeaseTime < cfg.LeaseTime {
		return Config{}, fmt.Errorf("max_lease_time %v is below lease_time %v", cfg.MaxLeaseTime, cfg.LeaseTime)
	}

	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:67"
	}
	if cfg.AdminListen == "" {
		cfg.AdminListen = ":8067"
	}
	if cfg.Router == nil {
		cfg.Router = cfg.ServerIP
	}

	return cfg, nil
}

// sweepDefault is a quarter of the lease time, clamped so short test
// leases do not spin the ticker and long leases still sweep promptly.
func sweepDefault(lease time.Duration) time.Duration {
	d := lease / 4
	if d < 30*time.Second {
		d = 30 * time.Second
	}
	if d > 15*time.Minute {
		d = 15 * time.Minute
	}
	return d
}

func parseIP(field, value string, required bool) (net.IP, error) {
	if value == "" {
		if required {
			return nil, fmt.Errorf("%s is required", field)
		}
		return nil, nil
	}
	ip := net.ParseIP(value)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid %s: %q", field, value)
	}
	return ip.To4(), nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", field, value)
	}
	return d, nil
}

func ipCompare(a, b net.IP) int {
	aa := a.To4()
	bb := b.To4()
	for i := range aa {
		if aa[i] < bb[i] {
			return -1
		}
		if aa[i] > bb[i] {
			return 1
		}
	}
	return 0
}
