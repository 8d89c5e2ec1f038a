package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/gemini-chat/backend/internal/client/proxy"
	"github.com/zhouzirui/gemini-chat/backend/internal/config"
	"github.com/zhouzirui/gemini-chat/backend/internal/model/preference"
	"github.com/zhouzirui/gemini-chat/backend/internal/render"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/app"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/chat"
	"github.com/zhouzirui/gemini-chat/backend/internal/service/title"
	"github.com/zhouzirui/gemini-chat/backend/internal/storage"
)

const helpText = `commands:
  /new                   start a new chat
  /list [query]          list chats, optionally filtered by title
  /select <n|id>         switch to a chat
  /rename <title>        rename the active chat
  /delete [n|id]         delete a chat (the active one by default)
  /clear                 delete every chat
  /export [dir]          write the active chat as JSON
  /show                  print the active transcript
  /timestamps on|off     toggle message timestamps
  /theme dark|light      set the theme preference
  /autosave on|off       toggle draft auto-save
  /login <user> <pass>   sign in
  /logout                sign out
  /whoami                show the signed-in user
  /models                list models known to the server
  /quit                  exit
anything else is sent to the active chat`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env not loaded, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	proxyURL := flag.String("server", cfg.Client.ProxyURL, "proxy server base url")
	modelName := flag.String("model", proxy.DefaultModel, "model sent with every prompt")
	storePath := flag.String("store", "", "override STORE_PATH for the local chat store")
	verbose := flag.Bool("v", false, "keep log output on stderr")
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cfg.Storage.NewStore(ctx)
	if err != nil {
		fatal("failed to open %s store: %v", cfg.Storage.Backend, err)
	}
	defer storage.Close(store)

	client, err := proxy.New(*proxyURL, proxy.WithModel(*modelName), proxy.WithTimeout(cfg.Client.Timeout))
	if err != nil {
		fatal("invalid server url: %v", err)
	}

	application, err := app.New(chat.NewService(store), store, client, title.NewService(client))
	if err != nil {
		fatal("failed to create application: %v", err)
	}
	if _, err := application.Load(ctx); err != nil {
		fatal("failed to load chats: %v", err)
	}

	r := &repl{
		ctx:    ctx,
		app:    application,
		client: client,
		server: *proxyURL,
		term:   render.NewTerminal(os.Stdout, render.NewRevealer(cfg.Client.RevealInterval)),
		out:    os.Stdout,
	}
	r.run(os.Stdin)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

type repl struct {
	ctx    context.Context
	app    *app.App
	client *proxy.Client
	server string
	term   *render.Terminal
	out    io.Writer
}

func (r *repl) run(in io.Reader) {
	fmt.Fprintf(r.out, "connected to %s (model %s), /help for commands\n", r.server, r.client.Model())
	r.show()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-r.ctx.Done():
			fmt.Fprintln(r.out)
			return
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return
			}
			if quit := r.handle(strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// handle runs one input line and reports whether the client should exit.
func (r *repl) handle(line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		if _, err = r.app.NewChat(r.ctx); err == nil {
			r.show()
		}
	case "/list", "/search":
		err = r.term.RenderList(r.app.Search(arg))
	case "/select":
		err = r.selectChat(arg)
	case "/rename":
		err = r.rename(arg)
	case "/delete":
		err = r.deleteChat(arg)
	case "/clear":
		if _, err = r.app.ClearAll(r.ctx); err == nil {
			fmt.Fprintln(r.out, "all chats cleared")
		}
	case "/export":
		err = r.export(arg)
	case "/show":
		r.show()
	case "/timestamps":
		err = r.toggle(arg, r.app.SetShowTimestamps)
	case "/autosave":
		err = r.toggle(arg, r.app.SetAutoSave)
	case "/theme":
		err = r.app.SetTheme(r.ctx, preference.ParseTheme(arg))
	case "/login":
		err = r.login(arg)
	case "/logout":
		if err = r.app.Logout(r.ctx); err == nil {
			fmt.Fprintln(r.out, "signed out")
		}
	case "/whoami":
		err = r.whoami()
	case "/models":
		err = r.models()
	default:
		fmt.Fprintf(r.out, "unknown command %s, /help for commands\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
	return false
}

func (r *repl) send(prompt string) {
	fmt.Fprintln(r.out, "...")
	result, err := r.app.Send(r.ctx, "", prompt)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}

	if result.Title != "" {
		fmt.Fprintf(r.out, "(titled %q)\n", result.Title)
	}

	transcript, ok := r.app.Transcript(result.SessionID, nil)
	if !ok || len(transcript.Entries) == 0 {
		return
	}
	reply := transcript.Entries[len(transcript.Entries)-1]
	if err := r.term.RevealEntry(r.ctx, reply); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

func (r *repl) show() {
	active, ok := r.app.Active()
	if !ok {
		return
	}
	if transcript, ok := r.app.Transcript(active.ID, nil); ok {
		_ = r.term.RenderTranscript(transcript)
	}
}

// resolve maps a 1-based list position or a session id to an id.
func (r *repl) resolve(ref string) (string, bool) {
	if ref == "" {
		active, ok := r.app.Active()
		return active.ID, ok
	}
	if n, err := strconv.Atoi(ref); err == nil {
		items := r.app.Search("").Items
		if n < 1 || n > len(items) {
			return "", false
		}
		return items[n-1].ID, true
	}
	_, ok := r.app.Session(ref)
	return ref, ok
}

func (r *repl) selectChat(ref string) error {
	if ref == "" {
		return errors.New("usage: /select <n|id>")
	}
	id, ok := r.resolve(ref)
	if !ok || !r.app.Select(id) {
		return fmt.Errorf("%w: %s", chat.ErrSessionNotFound, ref)
	}
	r.show()
	return nil
}

func (r *repl) rename(title string) error {
	active, ok := r.app.Active()
	if !ok {
		return chat.ErrSessionNotFound
	}
	if _, err := r.app.Rename(r.ctx, active.ID, title); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "renamed to %q\n", strings.TrimSpace(title))
	return nil
}

func (r *repl) deleteChat(ref string) error {
	id, ok := r.resolve(ref)
	if !ok {
		return fmt.Errorf("%w: %s", chat.ErrSessionNotFound, ref)
	}
	if _, err := r.app.Delete(r.ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "chat deleted")
	r.show()
	return nil
}

func (r *repl) export(dir string) error {
	active, ok := r.app.Active()
	if !ok {
		return chat.ErrSessionNotFound
	}
	exported, err := r.app.Export(active.ID)
	if err != nil {
		return err
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filepath.Base(exported.Filename))
	if err := os.WriteFile(path, exported.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(r.out, "exported to %s\n", path)
	return nil
}

func (r *repl) toggle(arg string, set func(context.Context, bool) error) error {
	switch strings.ToLower(arg) {
	case "on", "true", "1":
		return set(r.ctx, true)
	case "off", "false", "0":
		return set(r.ctx, false)
	default:
		return errors.New("expected on or off")
	}
}

func (r *repl) login(arg string) error {
	username, password, _ := strings.Cut(arg, " ")
	profile, err := r.app.Login(r.ctx, username, strings.TrimSpace(password))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "signed in as %s\n", profile.Username)
	return nil
}

func (r *repl) whoami() error {
	profile, ok, err := r.app.CurrentUser(r.ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(r.out, "not signed in")
		return nil
	}
	fmt.Fprintln(r.out, profile.Username)
	return nil
}

func (r *repl) models() error {
	models, err := r.client.ListModels(r.ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintf(r.out, "%s\t%s\n", m.Name, m.DisplayName)
	}
	return nil
}
