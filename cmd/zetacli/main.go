// Package main provides a small non-interactive demonstration CLI for the
// zetaclient SDK: log in with a phone number, PIN, and OTP (or adopt an
// existing cookie file), then subscribe to one topic and print every
// decoded update until interrupted.
//
// Grounded on the teacher's cmd/server/main.go flag-parsing and
// logging-initialization shape, trimmed to this SDK's much smaller
// surface (no OAuth provider logins, no embedded server, no TUI — this is
// a client, not a proxy).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/otterbroker/zetaclient/internal/buildinfo"
	"github.com/otterbroker/zetaclient/internal/logging"
	"github.com/otterbroker/zetaclient/sdk"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.Setup()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("zetaclient %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var phone, pin, otp, cookieFile, topic, proxyURL, locale, logFile string
	flag.StringVar(&phone, "phone", "", "phone number for the web-login flow")
	flag.StringVar(&pin, "pin", "", "PIN for the web-login flow")
	flag.StringVar(&otp, "otp", "", "one-time code to complete the web-login flow")
	flag.StringVar(&cookieFile, "cookies", "", "path to a file of newline-separated session cookies, bypassing login")
	flag.StringVar(&topic, "topic", "", "JSON topic payload to subscribe to after connecting")
	flag.StringVar(&proxyURL, "proxy", "", "outbound proxy URL (http://, https://, or socks5://)")
	flag.StringVar(&locale, "locale", "", "handshake locale override")
	flag.StringVar(&logFile, "log-file", "", "route logging to a rotating file instead of stdout")
	flag.Parse()

	cfg := sdk.LoadConfig(sdk.WithProxyURL(proxyURL), sdk.WithLocale(locale), sdk.WithLogFile(logFile, 100))
	if err := logging.Configure(cfg); err != nil {
		log.Fatalf("zetaclient: configure logging: %v", err)
	}
	defer logging.Close()

	client := sdk.NewClient(cfg)
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := authenticate(ctx, client, phone, pin, otp, cookieFile); err != nil {
		log.Fatalf("zetaclient: authenticate: %v", err)
	}

	client.Stream().OnHandlers(streamHandlers())

	if err := client.Stream().Connect(ctx, ""); err != nil {
		log.Fatalf("zetaclient: connect: %v", err)
	}

	if topic != "" {
		id, err := client.Stream().Subscribe(topic, printUpdate)
		if err != nil {
			log.Fatalf("zetaclient: subscribe: %v", err)
		}
		log.Infof("zetaclient: subscribed id=%s topic=%s", id, topic)
	}

	<-ctx.Done()
	log.Info("zetaclient: shutting down")
}

func authenticate(ctx context.Context, client *sdk.Client, phone, pin, otp, cookieFile string) error {
	if cookieFile != "" {
		raw, err := os.ReadFile(cookieFile)
		if err != nil {
			return fmt.Errorf("read cookie file: %w", err)
		}
		var cookies []string
		for _, line := range strings.Split(string(raw), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				cookies = append(cookies, line)
			}
		}
		return client.LoginWithCookies(cookies)
	}

	if phone == "" || pin == "" || otp == "" {
		return fmt.Errorf("misuse: -phone, -pin, and -otp are required unless -cookies is supplied")
	}

	result, err := client.InitiateLogin(ctx, phone, pin)
	if err != nil {
		return fmt.Errorf("initiate login: %w", err)
	}
	log.Infof("zetaclient: login process %s started, countdown=%ds, channel=%s", result.ProcessID, result.CountdownInSeconds, result.TwoFactorChannel)

	return client.CompleteLogin(ctx, otp)
}

func streamHandlers() sdk.StreamHandlers {
	return sdk.StreamHandlers{
		OnOpen:  func() { log.Info("zetaclient: streaming channel open") },
		OnError: func(err error) { log.WithError(err).Warn("zetaclient: streaming error") },
		OnClose: func(err error) { log.WithError(err).Info("zetaclient: streaming channel closed") },
	}
}

func printUpdate(doc any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		log.WithError(err).Warn("zetaclient: marshal update for printing")
		return
	}
	fmt.Println(string(raw))
}
