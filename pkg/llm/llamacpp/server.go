package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/run-bigpig/clemm/pkg/logging"
)

// ServerConfig describes how to launch llama.cpp's server
type ServerConfig struct {
	ExecutablePath string
	ModelPath      string
	URL            string
	ContextSize    int
	GPULayers      int
	StartupTimeout time.Duration
	PollInterval   time.Duration
	StopTimeout    time.Duration
}

func (c *ServerConfig) setDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.ContextSize <= 0 {
		c.ContextSize = 4096
	}
	if c.GPULayers < 0 {
		c.GPULayers = 0
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
}

// Validate reports missing settings and missing files
func (c ServerConfig) Validate() error {
	if c.ExecutablePath == "" || c.ModelPath == "" {
		return errors.New("missing LLAMACPP_SERVER_EXECUTABLE_PATH or RAVEN_GGUF_MODEL_PATH")
	}
	if _, err := os.Stat(c.ExecutablePath); err != nil {
		return fmt.Errorf("server executable not found at %s: %w", c.ExecutablePath, err)
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("model file not found at %s: %w", c.ModelPath, err)
	}
	return nil
}

// Args returns the command line passed to the server executable
func (c ServerConfig) Args() ([]string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", c.URL, err)
	}
	port := u.Port()
	if port == "" {
		port = "8080"
	}
	return []string{
		"-m", c.ModelPath,
		"-c", strconv.Itoa(c.ContextSize),
		"-ngl", strconv.Itoa(c.GPULayers),
		"--port", port,
	}, nil
}

// Server is a running llama.cpp server child process
type Server struct {
	config ServerConfig
	client *Client
	cmd    *exec.Cmd
	logger logging.Logger

	done    chan struct{}
	waitErr error
	stop    sync.Once
}

// StartServer launches the server and waits until /health reports ok.
// The process is stopped again if it never becomes ready.
func StartServer(ctx context.Context, config ServerConfig, options ...Option) (*Server, error) {
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	args, err := config.Args()
	if err != nil {
		return nil, err
	}

	client := NewClient(config.URL, options...)
	s := &Server{
		config: config,
		client: client,
		cmd:    exec.Command(config.ExecutablePath, args...),
		logger: client.logger,
		done:   make(chan struct{}),
	}

	s.logger.Info(ctx, "Starting llama.cpp server", map[string]interface{}{
		"executable": config.ExecutablePath,
		"args":       args,
	})
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start llama.cpp server: %w", err)
	}
	go func() {
		s.waitErr = s.cmd.Wait()
		close(s.done)
	}()

	if err := s.waitReady(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.logger.Info(ctx, "llama.cpp server is ready", map[string]interface{}{"url": config.URL})
	return s, nil
}

// Client returns a client bound to the running server
func (s *Server) Client() *Client {
	return s.client
}

// Exited reports whether the process has ended
func (s *Server) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) waitReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.config.StartupTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(readyCtx)
	ready := make(chan struct{})

	g.Go(func() error {
		b := backoff.WithContext(backoff.NewConstantBackOff(s.config.PollInterval), gctx)
		err := backoff.Retry(func() error {
			return s.client.Health(gctx)
		}, b)
		if err != nil {
			return fmt.Errorf("%w after %s: %v", ErrServerNotReady, s.config.StartupTimeout, err)
		}
		close(ready)
		return nil
	})

	g.Go(func() error {
		select {
		case <-s.done:
			return fmt.Errorf("llama.cpp server exited before becoming ready: %v", s.waitErr)
		case <-ready:
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	return g.Wait()
}

// Close stops the server, first politely and then by force
func (s *Server) Close() error {
	var err error
	s.stop.Do(func() {
		if s.Exited() {
			return
		}
		if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			_ = s.cmd.Process.Kill()
		}
		select {
		case <-s.done:
		case <-time.After(s.config.StopTimeout):
			err = s.cmd.Process.Kill()
			<-s.done
		}
		s.logger.Info(context.Background(), "llama.cpp server has been shut down", nil)
	})
	return err
}
