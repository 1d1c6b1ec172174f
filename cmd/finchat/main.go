// Command finchat is the terminal client: it signs in against the FinChat
// API and runs a document question-answering conversation.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/finchat-assistant/internal/apiclient"
	"github.com/PaulBabatuyi/finchat-assistant/internal/chat"
	"github.com/PaulBabatuyi/finchat-assistant/internal/config"
	"github.com/PaulBabatuyi/finchat-assistant/internal/logger"
	"github.com/PaulBabatuyi/finchat-assistant/internal/qa"
)

func main() {
	register := flag.Bool("register", false, "create the account before signing in")
	email := flag.String("email", "", "account email (defaults to FINCHAT_EMAIL)")
	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		color.Red("Config error: %v", err)
		os.Exit(1)
	}
	if *email != "" {
		cfg.Email = *email
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: true})
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Debug("no .env file found, using environment variables")
	}

	if err := run(cfg, *register, os.Stdin, color.Output, log); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.ClientConfig, register bool, in io.Reader, out io.Writer, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := bufio.NewScanner(in)
	api := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.APITimeout,
		Logger:  log.Named("api"),
	})

	if err := signIn(ctx, api, cfg, register, input, out); err != nil {
		return err
	}

	qac := qa.New(qa.Options{
		BaseURL: cfg.QABaseURL,
		Timeout: cfg.QATimeout,
		Logger:  log.Named("qa"),
	})

	var a *app
	ctl := chat.New(chat.Deps{
		QA:       qac,
		History:  api,
		Counter:  api,
		Notifier: chat.NotifierFunc(func(n chat.Notice) { a.notify(n) }),
		Logger:   log.Named("chat"),
	})
	a = newApp(ctl, api, out, log)

	fmt.Fprintln(out, helpText)
	a.printTranscript()
	for {
		fmt.Fprint(out, a.prompt())
		if !input.Scan() {
			fmt.Fprintln(out)
			return input.Err()
		}
		if a.handle(ctx, input.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func signIn(ctx context.Context, api *apiclient.Client, cfg *config.ClientConfig, register bool, input *bufio.Scanner, out io.Writer) error {
	email := cfg.Email
	if email == "" {
		email = ask(input, out, "Email: ")
	}
	password := cfg.Password
	if password == "" {
		password = ask(input, out, "Password: ")
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return errors.New("email and password are required")
	}

	if register {
		if _, err := api.Register(ctx, email, password); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		infoColor.Fprintln(out, "Account created.")
	}

	user, err := api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	botColor.Fprintf(out, "Signed in as %s.\n", user.Email)
	return nil
}

func ask(input *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	if !input.Scan() {
		return ""
	}
	return strings.TrimSpace(input.Text())
}
