package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

// BatchSize is the unit of fetch output around which the ingestion
// transactions are delimited
const BatchSize = 10

const (
	connectTimeout = 30 * time.Second
	commandTimeout = 30 * time.Second
	fetchTimeout   = 60 * time.Second
)

// RawMessage is one fetched message before canonicalization
type RawMessage struct {
	UID    uint32
	Folder string
	Raw    []byte
}

// BatchFunc consumes one batch of fetched messages. Returning an error
// aborts the folder fetch.
type BatchFunc func(ctx context.Context, batch []RawMessage) error

// Client wraps one long-lived IMAP connection for a single account. It is
// owned by that account's poller and reused across poll cycles.
type Client struct {
	account models.Account
	log     logger.Logger
	conn    *client.Client
}

func NewClient(account models.Account, log logger.Logger) *Client {
	return &Client{
		account: account,
		log:     log,
	}
}

// Connected reports whether a live connection exists
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Connect dials per the account's flags (SSL-on-connect, or plaintext with
// optional STARTTLS) and authenticates. On any failure the client remains
// disconnected.
func (c *Client) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapClient.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("imap.host", c.account.IMAPHost))

	if c.conn != nil {
		return nil
	}

	serverAddr := fmt.Sprintf("%s:%d", c.account.IMAPHost, c.account.IMAPPort)

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	var conn *client.Client
	var err error

	if c.account.IMAPUseSSL {
		tlsConfig := &tls.Config{
			ServerName: c.account.IMAPHost,
		}
		conn, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		conn, err = client.DialWithDialer(dialer, serverAddr)
		if err == nil && c.account.IMAPUseTLS {
			tlsConfig := &tls.Config{
				ServerName: c.account.IMAPHost,
			}
			if startErr := conn.StartTLS(tlsConfig); startErr != nil {
				conn.Logout()
				err = errors.Wrap(startErr, "starttls failed")
			}
		}
	}

	if err != nil {
		err = errors.Wrap(err, "connection error")
		tracing.TraceErr(span, err)
		return err
	}

	conn.Timeout = commandTimeout
	if err := conn.Login(c.account.Username, c.account.Password); err != nil {
		conn.Logout()
		err = errors.Wrap(err, "login error")
		tracing.TraceErr(span, err)
		return err
	}
	conn.Timeout = 0

	c.conn = conn
	c.log.Infof("[account %d] connected to %s", c.account.ID, serverAddr)
	return nil
}

// Folders lists the folders to fetch this cycle. The list is re-enumerated
// on every call so folders added mid-run are picked up.
func (c *Client) Folders(ctx context.Context) ([]string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapClient.Folders")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if c.conn == nil {
		return nil, errors.New("not connected")
	}

	mailboxes := make(chan *goimap.MailboxInfo, 20)
	done := make(chan error, 1)

	c.conn.Timeout = commandTimeout
	go func() {
		done <- c.conn.List("", "*", mailboxes)
	}()

	var listed []string
	for mbox := range mailboxes {
		listed = append(listed, mbox.Name)
	}

	err := <-done
	c.conn.Timeout = 0
	if err != nil {
		err = errors.Wrap(err, "folder list error")
		tracing.TraceErr(span, err)
		return nil, err
	}

	folders := SelectFolders(c.account.IMAPHost, listed)
	span.LogFields(tracingLog.Int("folders", len(folders)))
	return folders, nil
}

// FetchFolder selects a folder read-only, searches ALL, and fetches each
// UID one at a time, handing batches of BatchSize to onBatch. A positive
// limit keeps only the most recent UIDs. Messages are never marked seen;
// per-message fetch errors skip the UID.
func (c *Client) FetchFolder(ctx context.Context, folder string, limit int, onBatch BatchFunc) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapClient.FetchFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("folder", folder))

	if c.conn == nil {
		return errors.New("not connected")
	}

	// Read-only select so the fetch can never mutate origin-server state
	c.conn.Timeout = commandTimeout
	_, err := c.conn.Select(folder, true)
	c.conn.Timeout = 0
	if err != nil {
		err = errors.Wrapf(err, "error selecting folder %s", folder)
		tracing.TraceErr(span, err)
		return err
	}

	criteria := goimap.NewSearchCriteria()
	c.conn.Timeout = commandTimeout
	uids, err := c.conn.UidSearch(criteria)
	c.conn.Timeout = 0
	if err != nil {
		err = errors.Wrapf(err, "error searching folder %s", folder)
		tracing.TraceErr(span, err)
		return err
	}

	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	span.LogFields(tracingLog.Int("uids", len(uids)))

	batch := make([]RawMessage, 0, BatchSize)
	for _, uid := range uids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := c.fetchMessage(uid)
		if err != nil {
			c.log.Warnf("[account %d][%s] skipping uid %d: %v", c.account.ID, folder, uid, err)
			if isConnectionError(err) {
				tracing.TraceErr(span, err)
				return err
			}
			continue
		}

		batch = append(batch, RawMessage{UID: uid, Folder: folder, Raw: raw})
		if len(batch) == BatchSize {
			if err := onBatch(ctx, batch); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
			batch = make([]RawMessage, 0, BatchSize)
		}
	}

	// remainder on folder completion
	if len(batch) > 0 {
		if err := onBatch(ctx, batch); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	return nil
}

// fetchMessage fetches a single UID's full RFC 822 octets with BODY.PEEK
func (c *Client) fetchMessage(uid uint32) ([]byte, error) {
	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{section.FetchItem(), goimap.FetchUid}

	messages := make(chan *goimap.Message, 1)
	done := make(chan error, 1)

	c.conn.Timeout = fetchTimeout
	go func() {
		done <- c.conn.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		raw = data
	}

	err := <-done
	c.conn.Timeout = 0
	if err != nil {
		return nil, errors.Wrapf(err, "fetch error for uid %d", uid)
	}
	if raw == nil {
		return nil, errors.Errorf("empty body for uid %d", uid)
	}

	return raw, nil
}

// TestConnection verifies the IMAP credentials with a throwaway connection
func TestConnection(ctx context.Context, account models.Account, log logger.Logger) error {
	probe := NewClient(account, log)
	if err := probe.Connect(ctx); err != nil {
		return err
	}
	probe.Logout()
	return nil
}

// Logout drops the connection best-effort
func (c *Client) Logout() {
	if c.conn == nil {
		return
	}
	c.conn.Timeout = 5 * time.Second
	_ = c.conn.Logout()
	c.conn = nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "connection reset") ||
		strings.Contains(errorMsg, "broken pipe")
}
