/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config holds the domain configuration surface (spec.md §6):
// settings fixed once, before a participant is created, following the
// teacher's Options-struct-with-struct-tags shape so the same values
// can be loaded from JSON/YAML/TOML via viper or decoded with
// mapstructure.
package config

import (
	"time"

	rerrors "github.com/nabbar/golib/errors"

	"github.com/sabouaram/rtpsdds/ddserr"
)

const errBadParameter = ddserr.MinPkgConfig + 1

func errf(msg string) rerrors.Error {
	return rerrors.New(errBadParameter, msg)
}

// Config is the domain configuration surface of spec.md §6. It is
// immutable once passed to a participant constructor.
type Config struct {
	DomainID     int    `mapstructure:"domain_id" json:"domain_id" yaml:"domain_id" toml:"domain_id"`
	DomainTag    string `mapstructure:"domain_tag" json:"domain_tag" yaml:"domain_tag" toml:"domain_tag"`
	FragmentSize uint32 `mapstructure:"fragment_size" json:"fragment_size" yaml:"fragment_size" toml:"fragment_size"`

	ParticipantAnnouncementInterval time.Duration `mapstructure:"participant_announcement_interval" json:"participant_announcement_interval" yaml:"participant_announcement_interval" toml:"participant_announcement_interval"`
	HeartbeatPeriod                 time.Duration `mapstructure:"heartbeat_period" json:"heartbeat_period" yaml:"heartbeat_period" toml:"heartbeat_period"`
	NackResponseDelay               time.Duration `mapstructure:"nack_response_delay" json:"nack_response_delay" yaml:"nack_response_delay" toml:"nack_response_delay"`
	HeartbeatResponseDelay          time.Duration `mapstructure:"heartbeat_response_delay" json:"heartbeat_response_delay" yaml:"heartbeat_response_delay" toml:"heartbeat_response_delay"`
	LeaseDuration                   time.Duration `mapstructure:"lease_duration" json:"lease_duration" yaml:"lease_duration" toml:"lease_duration"`

	Interface string `mapstructure:"interface" json:"interface" yaml:"interface" toml:"interface"`

	MailboxBacklog int `mapstructure:"mailbox_backlog" json:"mailbox_backlog" yaml:"mailbox_backlog" toml:"mailbox_backlog"`
}

// Default returns the configuration defaults named in spec.md §6.
func Default() Config {
	return Config{
		DomainID:                        0,
		DomainTag:                       "",
		FragmentSize:                    1344,
		ParticipantAnnouncementInterval: 5 * time.Second,
		HeartbeatPeriod:                 3 * time.Second,
		NackResponseDelay:               200 * time.Millisecond,
		HeartbeatResponseDelay:          500 * time.Millisecond,
		LeaseDuration:                   20 * time.Second,
		MailboxBacklog:                  256,
	}
}

// Validate enforces the BadParameter rules of spec.md §7: domain_id
// must be non-negative, and every positive duration must actually be
// positive (zero/negative durations are meaningless for a period).
func (c Config) Validate() error {
	if c.DomainID < 0 {
		return errf("config: domain_id must be non-negative")
	}
	if c.FragmentSize == 0 {
		return errf("config: fragment_size must be positive")
	}
	if c.ParticipantAnnouncementInterval <= 0 {
		return errf("config: participant_announcement_interval must be positive")
	}
	if c.HeartbeatPeriod <= 0 {
		return errf("config: heartbeat_period must be positive")
	}
	if c.LeaseDuration <= 0 {
		return errf("config: lease_duration must be positive")
	}
	return nil
}

// SPDPMulticastPort computes the well-known SPDP multicast port for
// this domain (spec.md §6).
func (c Config) SPDPMulticastPort() uint32 {
	return 7400 + 250*uint32(c.DomainID)
}

// SPDPUnicastPort computes the well-known SPDP unicast port for
// participant index p within this domain.
func (c Config) SPDPUnicastPort(p uint32) uint32 {
	return 7400 + 250*uint32(c.DomainID) + 10 + 11*p
}

// UserMulticastPort computes the well-known user-data multicast port.
func (c Config) UserMulticastPort() uint32 {
	return 7400 + 250*uint32(c.DomainID) + 1
}

// UserUnicastPort computes the well-known user-data unicast port for
// participant index p.
func (c Config) UserUnicastPort(p uint32) uint32 {
	return 7400 + 250*uint32(c.DomainID) + 10 + 11*p + 1
}

// SPDPMulticastAddress is the default SPDP multicast address for IPv4
// (spec.md §6).
const SPDPMulticastAddress = "239.255.0.1"
