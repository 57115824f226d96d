// Package tgstore stores task files as documents of a telegram chat.
package tgstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api"
)

// RefStore keeps the telegram reference of every uploaded file, telegram
// has no way to look documents up by name.
type RefStore interface {
	GetFileRef(ctx context.Context, id string) (string, error)
	SetFileRef(ctx context.Context, id, ref string) error
}

type Config struct {
	Token string
	Chat  int64
	Proxy string
	Debug bool
}

type Store struct {
	bot    *tgbot.BotAPI
	chat   int64
	client *http.Client
	debug  bool
	refs   RefStore
}

func New(ctx context.Context, cfg *Config, refs RefStore) (*Store, error) {
	if refs == nil {
		return nil, fmt.Errorf("tgstore: file ref store is required")
	}
	client := &http.Client{
		Timeout: 2 * time.Minute,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("tgstore: invalid proxy %s: %w", cfg.Proxy, err)
		}
		client.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	bot, err := tgbot.NewBotAPIWithClient(cfg.Token, client)
	if err != nil {
		return nil, fmt.Errorf("tgstore: couldn't create bot: %w", err)
	}
	bot.Debug = cfg.Debug
	if _, err := bot.GetChat(tgbot.ChatConfig{ChatID: cfg.Chat}); err != nil {
		return nil, fmt.Errorf("tgstore: invalid chat %d: %w", cfg.Chat, err)
	}
	return &Store{
		bot:    bot,
		chat:   cfg.Chat,
		client: client,
		debug:  cfg.Debug,
		refs:   refs,
	}, nil
}

// Upload sends the file to the chat and saves its reference under name.
func (s *Store) Upload(ctx context.Context, path, name string) error {
	var msg tgbot.Message
	if err := retry(ctx, s.debug, func() error {
		var err error
		msg, err = s.bot.Send(tgbot.NewDocumentUpload(s.chat, path))
		if err != nil {
			return fmt.Errorf("tgstore: couldn't send %s: %w", name, err)
		}
		return nil
	}); err != nil {
		return err
	}
	fileID := messageFileID(&msg)
	if fileID == "" {
		return fmt.Errorf("tgstore: message %d of %s has no file", msg.MessageID, name)
	}
	if err := s.refs.SetFileRef(ctx, name, toRef(s.chat, msg.MessageID, fileID)); err != nil {
		return fmt.Errorf("tgstore: couldn't save ref of %s: %w", name, err)
	}
	if s.debug {
		log.Printf("tgstore: stored %s in message %d\n", name, msg.MessageID)
	}
	return nil
}

// Telegram may classify the document by its content.
func messageFileID(msg *tgbot.Message) string {
	switch {
	case msg.Document != nil:
		return msg.Document.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Voice != nil:
		return msg.Voice.FileID
	case msg.Photo != nil && len(*msg.Photo) > 0:
		photos := *msg.Photo
		return photos[len(photos)-1].FileID
	}
	return ""
}

func (s *Store) Download(ctx context.Context, path, name string) error {
	ref, err := s.refs.GetFileRef(ctx, name)
	if err != nil {
		return fmt.Errorf("tgstore: couldn't get ref of %s: %w", name, err)
	}
	_, _, fileID, err := fromRef(ref)
	if err != nil {
		return err
	}
	file, err := s.bot.GetFile(tgbot.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("tgstore: couldn't get file %s: %w", name, err)
	}
	link := file.Link(s.bot.Token)
	return retry(ctx, s.debug, func() error {
		return s.download(ctx, link, path)
	})
}

func (s *Store) download(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("tgstore: couldn't create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		// The link contains the bot token
		return fmt.Errorf("tgstore: couldn't download %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tgstore: couldn't download %s: status %d", path, resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tgstore: couldn't create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("tgstore: couldn't write %s: %w", path, err)
	}
	return nil
}

var backoff = []time.Duration{
	15 * time.Second,
	30 * time.Second,
}

func retry(ctx context.Context, debug bool, fn func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i >= len(backoff) {
			return err
		}
		if debug {
			log.Printf("%v (retrying in %s)\n", err, backoff[i])
		}
		t := time.NewTimer(backoff[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// A ref is chat/message/file.
func toRef(chat int64, msgID int, fileID string) string {
	return fmt.Sprintf("%d/%d/%s", chat, msgID, fileID)
}

func fromRef(ref string) (int64, int, string, error) {
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, 0, "", fmt.Errorf("tgstore: invalid ref %q", ref)
	}
	chat, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("tgstore: invalid chat in ref %q: %w", ref, err)
	}
	msgID, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, "", fmt.Errorf("tgstore: invalid message in ref %q: %w", ref, err)
	}
	return chat, msgID, parts[2], nil
}
