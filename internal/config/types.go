package config

import (
	"net"
	"time"
)

// Config is the resolved server configuration. It is built once by Load
// and immutable for the process lifetime; the serve loop and handler
// receive it by value.
type Config struct {
	Interface string
	Listen    string

	ServerIP   net.IP
	SubnetMask net.IPMask
	Router     net.IP
	DNS        []net.IP
	DomainName string

	PoolStart net.IP
	PoolEnd   net.IP

	LeaseTime    time.Duration
	MaxLeaseTime time.Duration
	OfferHold    time.Duration
	DeclineHold  time.Duration
	SweepEvery   time.Duration

	AdminListen string
	NATSURL     string
}

// fileConfig is the YAML shape of the config file; everything is a
// string or list of strings and resolved into Config by Load.
type fileConfig struct {
	Interface  string   `yaml:"interface"`
	Listen     string   `yaml:"listen"`
	ServerIP   string   `yaml:"server_ip"`
	SubnetMask string   `yaml:"subnet_mask"`
	Router     string   `yaml:"router"`
	DNS        []string `yaml:"dns"`
	DomainName string   `yaml:"domain_name"`

	Pool struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"pool"`

	LeaseTime    string `yaml:"lease_time"`
	MaxLeaseTime string `yaml:"max_lease_time"`
	OfferHold    string `yaml:"offer_hold"`
	DeclineHold  string `yaml:"decline_hold"`
	SweepEvery   string `yaml:"sweep_every"`

	AdminListen string `yaml:"admin_listen"`
	NATSURL     string `yaml:"nats_url"`
}
