// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail notifications to the operators of the logger.
package alert // import "github.com/go-lpc/o3log/internal/alert"

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-daq/tdaq/log"
	mail "gopkg.in/gomail.v2"
)

// maxAlerts is the number of mails sent for a given kind of alert.
const maxAlerts = 5

// Config holds the credentials of the mail relay.
type Config struct {
	User     string
	Password string
	Server   string
	Port     int
	Targets  []string
}

// FromEnv reads the mail configuration from the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
func FromEnv() Config {
	return Config{
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     atoi(os.Getenv("MAIL_PORT")),
		Targets:  split(os.Getenv("MAIL_TGTS")),
	}
}

func (cfg Config) valid() bool {
	return !(cfg.User == "" || cfg.Password == "" ||
		cfg.Server == "" || cfg.Port == 0 ||
		len(cfg.Targets) == 0)
}

var dialAndSend = func(d *mail.Dialer, msgs ...*mail.Message) error {
	return d.DialAndSend(msgs...)
}

// Mailer sends alerts by mail.
// Alerts are queued and sent by Run, so that Alert never blocks.
type Mailer struct {
	msg  log.MsgStream
	cfg  Config
	host string
	ch   chan *mail.Message

	mu     sync.Mutex
	alerts map[string]int
}

// NewMailer creates a mailer sending alerts on behalf of host.
func NewMailer(msg log.MsgStream, cfg Config, host string) *Mailer {
	return &Mailer{
		msg:    msg,
		cfg:    cfg,
		host:   host,
		ch:     make(chan *mail.Message, maxAlerts),
		alerts: make(map[string]int),
	}
}

// Alert queues a notification of the given kind.
// Only the first few alerts of each kind are sent.
func (m *Mailer) Alert(kind, txt string) {
	m.mu.Lock()
	m.alerts[kind]++
	n := m.alerts[kind]
	m.mu.Unlock()

	if n > maxAlerts {
		return
	}

	if !m.cfg.valid() {
		m.msg.Warnf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.User)
	msg.SetHeader("Bcc", m.cfg.Targets...)
	msg.SetHeader("Subject", fmt.Sprintf("[o3log] %s alert on %s", kind, m.host))
	body := fmt.Sprintf("host: %s\nkind: %s\n\n%s\n", m.host, kind, txt)
	if n == maxAlerts {
		body += "\nfurther alerts of this kind will not be sent.\n"
	}
	msg.SetBody("text/plain", body)

	select {
	case m.ch <- msg:
	default:
		m.msg.Warnf("could not queue mail alert: queue full")
	}
}

// Run sends queued alerts until ctx is canceled.
func (m *Mailer) Run(ctx context.Context) error {
	dial := mail.NewDialer(m.cfg.Server, m.cfg.Port, m.cfg.User, m.cfg.Password)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.ch:
			err := dialAndSend(dial, msg)
			if err != nil {
				m.msg.Errorf("could not send mail alert: %+v", err)
			}
		}
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func split(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
