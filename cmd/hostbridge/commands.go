package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/bridge"
	"github.com/germanamz/hostbridge/pkg/engine"
	"github.com/germanamz/hostbridge/pkg/enroll"
	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/germanamz/hostbridge/pkg/status"
	"github.com/spf13/pflag"
)

func parseFlags(name string, args []string, setup func(*pflag.FlagSet)) ([]string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// lineWriter serializes writes from router goroutines.
type lineWriter struct {
	mu sync.Mutex
	a  *app
}

func (w *lineWriter) println(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintln(w.a.stdout, s)
}

func (w *lineWriter) InjectJavaScript(script string) { w.println(script) }

func (a *app) session(out bridge.Injector, refID, extra string, methods *inject.Engine) (*engine.WebSession, error) {
	var acc account.Account
	if a.address != "" {
		acc = account.Account{Address: a.address, Testnet: a.cfg.Network.Testnet}
	}

	return a.eng.NewWebSession(engine.SessionOptions{
		Account:  acc,
		Injector: out,
		RefID:    refID,
		Extra:    extra,
		Methods:  methods,
		Open:     func(u string) { a.logger.Info("open url", "url", u) },
		Close:    func() { a.logger.Info("close app") },
		GoBack:   func() { a.logger.Info("go back") },
		Navigate: func(route string, params json.RawMessage) {
			a.logger.Info("navigate", "route", route, "params", string(params))
		},
	})
}

func runInject(_ context.Context, a *app, args []string) error {
	var refID, extra string
	if _, err := parseFlags("inject", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&refID, "ref", "", "entry point ref id")
		fs.StringVar(&extra, "extra", "", "extra script appended after the capabilities")
	}); err != nil {
		return err
	}

	s, err := a.session(bridge.InjectorFunc(func(string) {}), refID, extra, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(a.stdout, s.Source())

	return nil
}

// echoMethods is the method engine served by the route command.
func echoMethods() *inject.Engine {
	e := inject.NewEngine("hostbridge")
	e.Register("echo", func(_ context.Context, args json.RawMessage) (any, error) {
		return args, nil
	})
	return e
}

// runRoute reads one message per line. "nav <url>" feeds a navigation event
// and "back" a back press; every other line is a bridge message.
func runRoute(_ context.Context, a *app, args []string) error {
	var refID string
	if _, err := parseFlags("route", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&refID, "ref", "", "entry point ref id")
	}); err != nil {
		return err
	}

	out := &lineWriter{a: a}
	s, err := a.session(out, refID, "", echoMethods())
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "nav "):
			d := s.Navigate(strings.TrimSpace(strings.TrimPrefix(line, "nav ")))
			opts := s.Navigation().Options()
			out.println(fmt.Sprintf("# directive=%s back_policy=%s lock_scroll=%t show_kav=%t",
				d, opts.BackPolicy, opts.LockScroll, opts.ShowKeyboardAccessoryView))
		case line == "back":
			s.Back()
		default:
			s.Handle(line)
		}
	}

	// Let in-flight calls answer before closing.
	s.Router().Wait()
	s.Close()

	return scanner.Err()
}

func runToken(_ context.Context, a *app, args []string) error {
	rest, err := parseFlags("token", args, nil)
	if err != nil {
		return err
	}
	if err := a.requireAddress(); err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("usage: hostbridge token get|delete")
	}

	switch rest[0] {
	case "get":
		token, err := a.eng.Tokens().Get(a.address)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, token)
	case "delete":
		if err := a.eng.Tokens().Delete(a.address); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown token command %q", rest[0])
	}

	return nil
}

type statusOutput struct {
	Account   string  `json:"account"`
	Status    string  `json:"status"`
	KYCStatus *string `json:"kycStatus,omitempty"`
	Suspended bool    `json:"suspended,omitempty"`
}

func describe(addr string, s account.Status) statusOutput {
	return account.MatchStatus(s,
		func() statusOutput {
			return statusOutput{Account: addr, Status: account.StatusName(s)}
		},
		func(r account.Ready) statusOutput {
			return statusOutput{Account: addr, Status: account.StatusName(s), KYCStatus: r.KYCStatus, Suspended: r.Suspended}
		},
	)
}

func runStatus(ctx context.Context, a *app, args []string) error {
	if _, err := parseFlags("status", args, nil); err != nil {
		return err
	}
	if err := a.requireAddress(); err != nil {
		return err
	}

	s, err := a.eng.Tracker().Status(ctx, a.address)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.stdout)
	return enc.Encode(describe(a.address, s))
}

func runWatch(ctx context.Context, a *app, args []string) error {
	if _, err := parseFlags("watch", args, nil); err != nil {
		return err
	}
	if err := a.requireAddress(); err != nil {
		return err
	}

	sub := a.eng.Events().Subscribe(64)
	defer a.eng.Events().Unsubscribe(sub)

	conn, err := a.eng.Watch(ctx, a.address)
	if err != nil {
		return err
	}
	defer conn.Dispose()

	go a.eng.Poll(ctx, a.address)

	enc := json.NewEncoder(a.stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return errors.New("watcher stopped")
		case ev := <-sub.C:
			switch d := ev.Data.(type) {
			case status.Invalidation:
				errText := ""
				if d.Err != nil {
					errText = d.Err.Error()
				}
				_ = enc.Encode(map[string]string{"event": string(ev.Kind), "resource": string(d.Resource), "error": errText})
			default:
				_ = enc.Encode(map[string]any{"event": string(ev.Kind), "data": d})
			}
		}
	}
}

func runEnroll(ctx context.Context, a *app, args []string) error {
	var rawAddress, stateInit, version, invite string
	var deviceIndex int
	var useDevice bool
	if _, err := parseFlags("enroll", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&rawAddress, "raw-address", "", "raw account address (<workchain>:<hex>)")
		fs.StringVar(&stateInit, "state-init", "", "base64 wallet state init")
		fs.StringVar(&version, "wallet-version", string(account.WalletV4R2), "wallet version")
		fs.StringVar(&invite, "invite", "", "invite id; forces a fresh handshake")
		fs.BoolVar(&useDevice, "device", false, "sign on a hardware device")
		fs.IntVar(&deviceIndex, "device-index", 0, "hardware device account index")
	}); err != nil {
		return err
	}
	if err := a.requireAddress(); err != nil {
		return err
	}

	signer, err := seedSignerFromEnv()
	if err != nil {
		return err
	}
	if signer == nil && !useDevice {
		return fmt.Errorf("%s is required for software enrollment", seedEnv)
	}

	acc := account.Account{
		Address:     a.address,
		RawAddress:  rawAddress,
		Version:     account.WalletVersion(version),
		Signing:     account.SigningSoftware,
		DeviceIndex: deviceIndex,
		Testnet:     a.cfg.Network.Testnet,
	}
	if useDevice {
		acc.Signing = account.SigningDevice
	}
	if signer != nil {
		acc.PublicKey = signer.PublicKey()
	}

	a.stateInit = stateInit

	res := a.eng.Enroll(ctx, enroll.Request{Account: acc, InviteID: invite})

	if err := json.NewEncoder(a.stdout).Encode(res); err != nil {
		return err
	}
	if res.Type == enroll.ResultError {
		return fmt.Errorf("enrollment failed: %s", res.Error)
	}

	return nil
}
