package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/bridge/mqtt"
	"github.com/JFDuval/flexsea-v2/pkg/bus"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/config"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell   *ishell.Shell
	Config  *config.Config
	Session *Session
}

// Session is an open port with a channel per configured peripheral.
type Session struct {
	Transport comm.Transport
	Arbiter   *bus.Arbiter
	Channels  []*comm.Channel
	Configs   []config.Channel
	Current   int
	// Queue is set once frames are bridged to MQTT.
	Queue *mqtt.Queue
}

// Channel returns the current channel.
func (s *Session) Channel() *comm.Channel {
	return s.Channels[s.Current]
}

// Name returns the name of the current channel.
func (s *Session) Name() string {
	return s.Configs[s.Current].Name
}

// Close closes the channels and the bus.
func (s *Session) Close() error {
	// The channels share the transport, closing the first one closes it.
	for _, c := range s.Channels {
		c.Close()
	}
	if s.Queue != nil {
		s.Queue.Close()
	}
	return s.Arbiter.Close()
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "

	// commandTimeout bounds commands waiting for a reply.
	commandTimeout = 2 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&ChannelCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open port.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("port not open"))
			return
		}
		fn(c)
	}
}

// CommandContext creates the context of a command waiting for replies.
func CommandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// Print prints v as JSON or in Go syntax with field names.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if str, ok := v.(fmt.Stringer); ok {
		c.Println(str.String())
		return
	}
	c.Printf("%+v\n", v)
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the port and creates the channels.
func (s *Shell) Open(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Port = port
	}
	t, err := conf.OpenTransport()
	if err != nil {
		return err
	}
	session := &Session{Transport: t, Arbiter: conf.OpenBus(), Configs: conf.ChannelsOrDefault()}
	id, err := comm.HostIdentity(conf.Board)
	if err != nil {
		glog.Warningf("host identity unavailable: %v", err)
	}
	for _, chConf := range session.Configs {
		ch := conf.NewChannel(t, session.Arbiter, chConf)
		ch.Identity = id
		session.Channels = append(session.Channels, ch)
	}
	if err = session.Channel().Flush(); err != nil {
		glog.Warningf("flush %s: %v", conf.Port, err)
	}
	s.Close()
	s.Session = session
	s.Config.Port = conf.Port
	s.updatePrompt()
	return nil
}

// Close closes the session.
func (s *Shell) Close() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			glog.Warningf("close: %v", err)
		}
		s.Session = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

// Use switches to the named channel.
func (s *Shell) Use(name string) error {
	for n, ch := range s.Session.Configs {
		if ch.Name == name || fmt.Sprint(n) == name {
			s.Session.Current = n
			s.updatePrompt()
			return nil
		}
	}
	return fmt.Errorf("unknown channel %q", name)
}

func (s *Shell) updatePrompt() {
	s.Shell.SetPrompt(fmt.Sprintf("[%s:%s] > ", s.Config.Port, s.Session.Name()))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(""); err != nil {
			glog.Warningf("open %s: %v", s.Config.Port, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens the port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if err := ShellFrom(c).Open(port); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the port.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// ChannelCmd lists or switches channels.
	ChannelCmd = ishell.Cmd{
		Name:    "channel",
		Aliases: []string{"ch"},
		Help:    "[NAME|INDEX]",
		Func: MustBeOpen(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				if err := s.Use(c.Args[0]); err != nil {
					c.Err(err)
				}
				return
			}
			for n, ch := range s.Session.Configs {
				mark := " "
				if n == s.Session.Current {
					mark = "*"
				}
				c.Printf("%s %d %s (transceiver %d, command %d)\n", mark, n, ch.Name, ch.Index, ch.Command)
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).WithAutoOpen(true).Run(flag.Args()...)
}
