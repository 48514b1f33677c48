package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	intrnl "leafchat/internal"
	"leafchat/internal/api"
	"leafchat/internal/domain"
	"leafchat/internal/pkg/logx"
	"leafchat/internal/realtime"
	"leafchat/internal/state"
	"leafchat/internal/storage"
)

// Client holds everything the TUI needs for one run.
type Client struct {
	cfg     ClientConfig
	store   *storage.Store
	jar     *storage.CookieJar
	api     *api.Client
	channel *realtime.Manager
	events  <-chan realtime.Event
	state   *state.Store

	recorder *transcriptRecorder
	cancel   context.CancelFunc
}

// NewClient opens the local store, restores persisted cookies and prepares
// the API client and the realtime channel. The caller must Close it.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	jar, err := storage.NewCookieJar(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	socketURL, err := realtime.SocketURL(cfg.ServerURL, cfg.SocketPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	channel := realtime.New(realtime.Config{
		URL:            socketURL,
		Jar:            jar,
		AutoReconnect:  cfg.AutoReconnect,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	// subscribe before anything can connect so no frame is published unseen
	events, err := channel.Subscribe(runCtx)
	if err != nil {
		cancel()
		_ = channel.Close()
		_ = store.Close()
		return nil, err
	}

	c := &Client{
		cfg:   cfg,
		store: store,
		jar:   jar,
		api: api.New(cfg.ServerURL,
			api.WithJar(jar),
			api.WithTimeout(cfg.HTTPTimeout),
			api.WithUserAgent(intrnl.UserAgent()),
		),
		channel: channel,
		events:  events,
		state:   state.NewStore(state.State{}),
		cancel:  cancel,
	}
	c.recorder = newTranscriptRecorder(store, cfg.Channel)
	c.state.Subscribe(c.recorder.observe)
	return c, nil
}

// Options returns the TUI wiring for this client.
func (c *Client) Options() intrnl.Options {
	return intrnl.Options{
		Backend:        c.api,
		Channel:        c.channel,
		Events:         c.events,
		Store:          c.state,
		ChannelName:    c.cfg.Channel,
		ServerURL:      c.cfg.ServerURL,
		Username:       c.cfg.Username,
		RosterPolicy:   c.cfg.Policy(),
		RequestTimeout: c.cfg.HTTPTimeout,
		ClearSession:   c.jar.ClearCookies,
	}
}

// Close disconnects and flushes the transcript.
func (c *Client) Close() error {
	err := c.channel.Close()
	c.cancel()
	c.recorder.stop()
	if closeErr := c.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// RunClient launches the Bubble Tea TUI with the provided configuration.
func RunClient(ctx context.Context, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logFile, err := OpenLog(cfg.LogPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logx.InitGlobalLogger(logFile, cfg.Debug)

	client, err := NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	logx.Info("client starting", "server", cfg.ServerURL, "channel", cfg.Channel)
	return intrnl.RunClient(client.Options())
}

// OpenLog opens the append-only log file. The TUI owns the terminal, so logs
// never go to stderr while it runs.
func OpenLog(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

type transcriptJob struct {
	reset    bool
	messages []domain.Message
}

// transcriptRecorder mirrors the feed into the local store. Writes happen on
// one goroutine in dispatch order.
type transcriptRecorder struct {
	store   *storage.Store
	channel string
	jobs    chan transcriptJob
	quit    chan struct{}
	done    chan struct{}
}

func newTranscriptRecorder(store *storage.Store, channel string) *transcriptRecorder {
	r := &transcriptRecorder{
		store:   store,
		channel: channel,
		jobs:    make(chan transcriptJob, 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *transcriptRecorder) observe(a state.Action, _ state.State) {
	var job transcriptJob
	switch act := a.(type) {
	case state.MessagesReset:
		job = transcriptJob{reset: true, messages: act.Messages}
	case state.MessageAppend:
		if act.Message.IsSystem {
			return
		}
		job = transcriptJob{messages: []domain.Message{act.Message}}
	default:
		return
	}
	if job.reset {
		// a reset replaces the whole transcript, so it waits for room
		select {
		case r.jobs <- job:
		case <-r.quit:
			logx.Warn("transcript writer stopped, reset not recorded", "channel", r.channel)
		}
		return
	}
	select {
	case r.jobs <- job:
	default:
		logx.Warn("transcript writer behind, dropping update", "channel", r.channel)
	}
}

func (r *transcriptRecorder) run() {
	defer close(r.done)
	for {
		select {
		case job := <-r.jobs:
			r.write(job)
		case <-r.quit:
			for {
				select {
				case job := <-r.jobs:
					r.write(job)
				default:
					return
				}
			}
		}
	}
}

func (r *transcriptRecorder) write(job transcriptJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if job.reset {
		err = r.store.ReplaceTranscript(ctx, r.channel, job.messages)
	} else {
		err = r.store.AppendMessage(ctx, r.channel, job.messages[0])
	}
	if err != nil {
		logx.Error(err, "transcript write failed", "channel", r.channel, "reset", job.reset)
	}
}

// stop drains pending writes and returns once they are done.
func (r *transcriptRecorder) stop() {
	close(r.quit)
	<-r.done
}

// PrintHistory writes the last limit transcript lines of channel to w without
// touching the network.
func PrintHistory(ctx context.Context, w io.Writer, dbPath, channel string, limit int) error {
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		_, err = fmt.Fprintf(w, "no stored messages for %s\n", channel)
		return err
	}
	store, err := storage.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	msgs, err := store.Recent(ctx, channel, limit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		_, err = fmt.Fprintf(w, "no stored messages for %s\n", channel)
		return err
	}
	for _, m := range msgs {
		line := m.Message
		if m.HasAttachment() {
			line = fmt.Sprintf("%s %s", line, m.FileURL)
		}
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), m.Sender(), line); err != nil {
			return err
		}
	}
	return nil
}
