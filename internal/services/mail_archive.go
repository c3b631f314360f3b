package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// IMAPArchive appends delivered messages to the sender's Sent mailbox, so
// they show up in the relay account like mail sent by hand.
type IMAPArchive struct {
	addr     string
	username string
	password string
	mailbox  string
	tls      *tls.Config
	dial     func(addr string, tlsConfig *tls.Config) (*client.Client, error)
}

// NewIMAPArchive creates a new IMAPArchive.
func NewIMAPArchive(addr, username, password, mailbox string) *IMAPArchive {
	return &IMAPArchive{
		addr:     addr,
		username: username,
		password: password,
		mailbox:  mailbox,
		dial:     client.DialTLS,
	}
}

// Save appends raw to the Sent mailbox with the \Seen flag.
func (a *IMAPArchive) Save(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := a.dial(a.addr, a.tls)
	if err != nil {
		return fmt.Errorf("imap dial: %w", err)
	}
	defer c.Logout()

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(a.username, a.password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}

	if err := c.Append(a.mailbox, []string{imap.SeenFlag}, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return fmt.Errorf("imap append to %s: %w", a.mailbox, err)
	}
	return nil
}
