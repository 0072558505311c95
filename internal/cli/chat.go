// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for masterchat.
//
// Interactive Commands:
//   /new                Start a new conversation
//   /list               List conversations, most recent first
//   /open N             Switch to conversation N
//   /delete N           Delete conversation N
//   /attach PATH...     Attach files to the next message
//   /files              Show pending attachments
//   /preview N          Show a pending text attachment
//   /detach N           Remove pending attachment N
//   /search QUERY       Find conversations by title or content
//   /export md|json     Export the active conversation
//   /theme              Toggle light and dark theme
//   /login NAME EMAIL   Remember who you are
//   /logout             Forget the stored user
//   /help               Show available commands
//   /quit               Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/time/rate"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/export"
	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
	"github.com/jeranaias/masterchat/internal/prompt"
	"github.com/jeranaias/masterchat/internal/session"
	"github.com/jeranaias/masterchat/internal/store"
)

// ErrUsage is returned for a malformed command.
var ErrUsage = errors.New("usage")

// progressInterval throttles the progress indicator shown while a reply
// streams in markdown mode.
const progressInterval = 250 * time.Millisecond

// searchPreviewRunes bounds the last-message preview under a search hit.
const searchPreviewRunes = 60

// command describes one slash command for /help and completion.
type command struct {
	name string
	args string
	desc string
}

var commands = []command{
	{"/new", "", "Start a new conversation"},
	{"/list", "", "List conversations"},
	{"/open", "N", "Switch to conversation N"},
	{"/delete", "N", "Delete conversation N"},
	{"/attach", "PATH...", "Attach files to the next message"},
	{"/files", "", "Show pending attachments"},
	{"/preview", "N", "Show a pending text attachment"},
	{"/detach", "N", "Remove pending attachment N"},
	{"/search", "QUERY", "Find conversations by title or content"},
	{"/export", "md|json", "Export the active conversation"},
	{"/theme", "", "Toggle light and dark theme"},
	{"/login", "NAME EMAIL", "Remember who you are"},
	{"/logout", "", "Forget the stored user"},
	{"/help", "", "Show this help"},
	{"/quit", "", "Exit"},
}

// Options configures the REPL.
type Options struct {
	// ExportDir is where /export writes files. Default: current directory.
	ExportDir string

	// Markdown renders finished replies with glamour instead of streaming
	// raw text.
	Markdown bool

	// Color enables lipgloss and syntax highlighting.
	Color bool

	// Width is the wrap width. Zero means the terminal width.
	Width int

	// Provider and Model are shown in the banner.
	Provider string
	Model    string

	Logger *slog.Logger
}

// App is the interactive front end over a chat session.
type App struct {
	sess   *session.Session
	store  *store.Store
	in     LineReader
	out    io.Writer
	opts   Options
	logger *slog.Logger

	styles   Styles
	render   *Renderer
	progress *rate.Sometimes

	// Reply being streamed; touched only from store listeners, which run on
	// the goroutine calling Send.
	replyID string
	printed int
}

// NewApp creates the REPL. Store changes are rendered as they happen.
func NewApp(sess *session.Session, in LineReader, out io.Writer, opts Options) *App {
	if opts.Width <= 0 {
		opts.Width = GetTerminalWidth()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	theme := sess.Store().Theme()
	a := &App{
		sess:     sess,
		store:    sess.Store(),
		in:       in,
		out:      out,
		opts:     opts,
		logger:   logging.Or(opts.Logger).With("component", "cli"),
		styles:   NewStyles(theme),
		render:   NewRenderer(theme, opts.Width, opts.Color),
		progress: &rate.Sometimes{Interval: progressInterval},
	}
	a.store.Subscribe(a.onEvent)
	return a
}

// =============================================================================
// REPL
// =============================================================================

// Run reads and executes lines until /quit, Ctrl+C or end of input.
func (a *App) Run(ctx context.Context) error {
	a.printWelcome()

	for {
		input, err := a.in.Prompt(a.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(a.out)
				fmt.Fprintln(a.out, a.styles.Dim.Render("Goodbye!"))
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		quit, err := a.Exec(ctx, input)
		if err != nil {
			fmt.Fprintf(a.out, "%s %v\n", a.styles.Error.Render("[Error]"), err)
		}
		if quit {
			fmt.Fprintln(a.out, a.styles.Dim.Render("Goodbye!"))
			return nil
		}
	}
}

func (a *App) prompt() string {
	if n := len(a.sess.PendingAttachments()); n > 0 {
		return a.styles.Prompt.Render(fmt.Sprintf("masterchat [%d] > ", n))
	}
	return a.styles.Prompt.Render("masterchat> ")
}

// Exec runs one line of input: a slash command or a message to send.
// It reports whether the REPL should exit.
func (a *App) Exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, a.send(ctx, line)
	}

	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/new", "/n":
		a.sess.NewChat()
		fmt.Fprintln(a.out, a.styles.Command.Render("[New conversation]"))
		a.printSuggestions()
	case "/list", "/ls":
		fmt.Fprint(a.out, formatConversationList(a.store.List(), a.store.ActiveID(), a.styles, time.Now()))
	case "/open", "/o":
		return false, a.open(args)
	case "/delete", "/rm":
		return false, a.delete(args)
	case "/attach", "/a":
		return false, a.attach(ctx, args)
	case "/files":
		a.printPending()
	case "/preview":
		return false, a.preview(args)
	case "/detach":
		return false, a.detach(args)
	case "/search", "/s":
		return false, a.search(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "/export":
		return false, a.export(args)
	case "/theme":
		theme := a.sess.ToggleTheme()
		fmt.Fprintf(a.out, "%s Theme: %s\n", a.styles.Command.Render("[OK]"), theme)
	case "/login":
		return false, a.login(args)
	case "/logout":
		a.sess.Logout()
		fmt.Fprintln(a.out, a.styles.Command.Render("[Logged out]"))
	case "/help", "/h", "/?", "/":
		a.printHelp()
	case "/quit", "/q", "/exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", name)
	}
	return false, nil
}

// =============================================================================
// SENDING AND STREAMING
// =============================================================================

func (a *App) send(ctx context.Context, text string) error {
	a.sess.SetInput(text)
	_, err := a.sess.Send(ctx)
	return err
}

// onEvent renders store changes. Replies stream as raw text, or as a
// throttled progress indicator followed by rendered markdown.
func (a *App) onEvent(e store.Event) {
	switch e.Kind {
	case store.EventMessagesAppended:
		a.replyID, a.printed = e.MessageID, 0
		fmt.Fprintf(a.out, "\n%s\n", a.styles.Assistant.Render(model.RoleAssistant.DisplayName()))

	case store.EventMessageUpdated:
		if e.MessageID != a.replyID {
			return
		}
		if a.opts.Markdown {
			a.progress.Do(func() { fmt.Fprint(a.out, a.styles.Dim.Render(".")) })
			return
		}
		content := a.messageContent(e.ConversationID, e.MessageID)
		if len(content) > a.printed {
			fmt.Fprint(a.out, content[a.printed:])
			a.printed = len(content)
		}

	case store.EventMessageFinalized:
		if e.MessageID != a.replyID {
			return
		}
		content := a.messageContent(e.ConversationID, e.MessageID)
		switch {
		case content == "":
			fmt.Fprintln(a.out, a.styles.Dim.Render("(empty response)"))
		case a.opts.Markdown:
			fmt.Fprint(a.out, "\r")
			fmt.Fprint(a.out, a.render.Markdown(content))
		default:
			fmt.Fprintln(a.out)
		}
		fmt.Fprintln(a.out)
		a.replyID, a.printed = "", 0

	case store.EventThemeChanged:
		theme := a.store.Theme()
		a.styles = NewStyles(theme)
		a.render = a.render.WithTheme(theme)
	}
}

func (a *App) messageContent(convID, msgID string) string {
	conv, err := a.store.Conversation(convID)
	if err != nil {
		return ""
	}
	if msg := conv.MessageByID(msgID); msg != nil {
		return msg.Content
	}
	return ""
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

// conversationAt resolves a 1-based position in the /list order.
func (a *App) conversationAt(args []string, usage string) (*model.Conversation, error) {
	n, err := indexArg(args, usage)
	if err != nil {
		return nil, err
	}
	convs := a.store.List()
	if n > len(convs) {
		return nil, fmt.Errorf("no conversation %d (have %d)", n, len(convs))
	}
	return convs[n-1], nil
}

func (a *App) open(args []string) error {
	conv, err := a.conversationAt(args, "/open N")
	if err != nil {
		return err
	}
	if err := a.sess.Select(conv.ID); err != nil {
		return err
	}
	a.printConversation(conv)
	return nil
}

func (a *App) delete(args []string) error {
	conv, err := a.conversationAt(args, "/delete N")
	if err != nil {
		return err
	}
	if err := a.sess.Delete(conv.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deleted %q\n", a.styles.Command.Render("[OK]"), conv.Title)
	return nil
}

func (a *App) search(query string) error {
	if query == "" {
		return fmt.Errorf("%w: /search QUERY", ErrUsage)
	}
	results := a.store.Search(query)
	if len(results) == 0 {
		fmt.Fprintf(a.out, "%s\n", a.styles.Dim.Render("No conversations match "+strconv.Quote(query)))
		return nil
	}

	position := make(map[string]int)
	for i, conv := range a.store.List() {
		position[conv.ID] = i + 1
	}
	for _, conv := range results {
		fmt.Fprintf(a.out, "%s %s %s\n",
			PadWidth(strconv.Itoa(position[conv.ID]), 4),
			TruncateWidth(conv.Title, listTitleWidth),
			a.styles.Dim.Render(fmt.Sprintf("(%d messages)", len(conv.Messages))))
		if last := conv.LastMessage(); last != nil && last.Content != "" {
			preview := strings.Join(strings.Fields(last.Preview(searchPreviewRunes)), " ")
			fmt.Fprintf(a.out, "     %s\n", a.styles.Dim.Render(preview))
		}
	}
	return nil
}

func (a *App) export(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: /export md|json", ErrUsage)
	}
	conv := a.store.Active()
	if conv == nil {
		return errors.New("no active conversation to export")
	}
	opts := export.DefaultOptions()
	opts.OutputDir = a.opts.ExportDir
	exporter, err := export.ForFormat(args[0], opts)
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return err
	}
	a.logger.Info("conversation exported", "conversation_id", conv.ID, "format", exporter.MimeType())
	fmt.Fprintf(a.out, "%s Exported to %s\n", a.styles.Command.Render("[OK]"), path)
	return nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (a *App) attach(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: /attach PATH...", ErrUsage)
	}
	sources := make([]attachment.Source, len(paths))
	for i, p := range paths {
		sources[i] = attachment.FromPath(p)
	}
	for _, res := range a.sess.Attach(ctx, sources...) {
		if res.OK() {
			fmt.Fprintf(a.out, "%s %s (%s)\n", a.styles.Command.Render("[Attached]"), res.Name, res.Attachment.MIMEType)
			continue
		}
		fmt.Fprintf(a.out, "%s %s: %v\n", a.styles.Warning.Render("[Skipped]"), res.Name, res.Err)
	}
	return nil
}

func (a *App) detach(args []string) error {
	n, err := indexArg(args, "/detach N")
	if err != nil {
		return err
	}
	if err := a.sess.RemoveAttachment(n - 1); err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.styles.Command.Render("[Detached]"))
	return nil
}

func (a *App) preview(args []string) error {
	n, err := indexArg(args, "/preview N")
	if err != nil {
		return err
	}
	pending := a.sess.PendingAttachments()
	if n > len(pending) {
		return session.ErrNoAttachment
	}
	att := pending[n-1]
	if prompt.Classify(att) != prompt.KindText {
		return fmt.Errorf("%s is not a text file (%s)", att.Name, prompt.Classify(att))
	}
	text, err := prompt.DecodeText(att.Data)
	if err != nil {
		return fmt.Errorf("read %s: %w", att.Name, err)
	}
	fmt.Fprintln(a.out, a.styles.Title.Render(att.Name))
	fmt.Fprintln(a.out, a.render.Source(att.Name, text))
	return nil
}

func (a *App) printPending() {
	pending := a.sess.PendingAttachments()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, a.styles.Dim.Render("No pending attachments."))
		return
	}
	for i, att := range pending {
		fmt.Fprintf(a.out, "  %d. %s %s\n", i+1, att.Name,
			a.styles.Dim.Render(fmt.Sprintf("(%s, %s)", att.MIMEType, prompt.Classify(att))))
	}
}

// =============================================================================
// USER
// =============================================================================

// login takes the last argument as the email and the rest as the name.
func (a *App) login(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: /login NAME EMAIL", ErrUsage)
	}
	name := strings.Join(args[:len(args)-1], " ")
	if err := a.sess.Login(name, args[len(args)-1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Welcome, %s\n", a.styles.Command.Render("[OK]"), name)
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (a *App) printWelcome() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, a.styles.Title.Render("MASTERCHAT AI"))
	fmt.Fprintln(a.out, a.styles.Separator(30))
	if a.opts.Provider != "" {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.Dim.Render("Provider:"), a.styles.Command.Render(a.opts.Provider))
	}
	if a.opts.Model != "" {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.Dim.Render("Model:"), a.styles.Command.Render(a.opts.Model))
	}
	if u := a.store.User(); u != nil {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.Dim.Render("Signed in as:"), u.Name)
	}
	if conv := a.store.Active(); conv != nil {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.Dim.Render("Conversation:"), conv.Title)
	}
	fmt.Fprintln(a.out)
	a.printSuggestions()
	fmt.Fprintln(a.out, a.styles.Dim.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(a.out)
}

// printSuggestions shows starter prompts when there is nothing to continue.
func (a *App) printSuggestions() {
	if conv := a.store.Active(); conv != nil && !conv.IsEmpty() {
		return
	}
	fmt.Fprintln(a.out, a.styles.Dim.Render("Try asking:"))
	for _, s := range a.sess.Suggestions(session.DefaultSuggestionCount) {
		fmt.Fprintf(a.out, "  %s %s\n", a.styles.Dim.Render("-"), s)
	}
	fmt.Fprintln(a.out)
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, a.styles.Title.Render("Available Commands"))
	fmt.Fprintln(a.out, a.styles.Separator(20))
	for _, c := range commands {
		usage := strings.TrimSpace(c.name + " " + c.args)
		fmt.Fprintf(a.out, "  %s  %s\n",
			a.styles.Command.Render(PadWidth(usage, 20)),
			a.styles.Dim.Render(c.desc))
	}
	fmt.Fprintln(a.out)
}

func (a *App) printConversation(conv *model.Conversation) {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, a.styles.Title.Render(conv.Title))
	fmt.Fprintln(a.out, a.styles.Separator(30))
	for _, msg := range conv.Messages {
		role := a.styles.User
		if msg.Role == model.RoleAssistant {
			role = a.styles.Assistant
		}
		fmt.Fprintf(a.out, "%s %s\n", role.Render(msg.Role.DisplayName()),
			a.styles.Dim.Render(msg.CreatedAt.Format("15:04")))
		if msg.Content != "" {
			if msg.Role == model.RoleAssistant && a.opts.Markdown {
				fmt.Fprint(a.out, a.render.Markdown(msg.Content))
			} else {
				fmt.Fprintln(a.out, WrapText(msg.Content, a.opts.Width))
			}
		}
		for _, att := range msg.Attachments {
			fmt.Fprintf(a.out, "  %s\n", a.styles.Dim.Render("[file] "+att.Name))
		}
		fmt.Fprintln(a.out)
	}
}

// indexArg parses a single 1-based index argument.
func indexArg(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s", ErrUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s (N is a number from /list)", ErrUsage, usage)
	}
	return n, nil
}
