// Package mcu talks to the DAC firmware: it retrieves the dictionary,
// encodes commands by name and routes decoded responses to waiters.
package mcu

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"gopdac/host/serial"
	"gopdac/protocol"
)

// Fixed ids of the identify exchange, valid before a dictionary exists
const (
	identifyResponseID = 0
	identifyID         = 1

	// identifyChunk is the number of dictionary bytes requested per identify
	identifyChunk = 40
	// maxDictionary bounds the retrieval loop
	maxDictionary = 64 * 1024
)

var (
	identifyResponseFormat, _ = ParseFormat(identifyResponseID, "identify_response offset=%u data=%*s")
	identifyFormat, _         = ParseFormat(identifyID, "identify offset=%u count=%c")
)

// DefaultTimeout bounds the wait for an ACK or a response
const DefaultTimeout = 2 * time.Second

// MCU represents a connection to the DAC firmware
type MCU struct {
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte

	// Timeout bounds each wait for an ACK or a response
	Timeout time.Duration

	// opMu serializes request/response exchanges
	opMu sync.Mutex

	mu       sync.Mutex
	waiters  []*waiter
	handlers map[string][]func(*Response)
}

// waiter receives the first response named name that satisfies match.
// An empty name leaves the choice to match.
type waiter struct {
	name  string
	match func(*Response) bool
	ch    chan *Response
}

// New attaches to an open byte stream. The transport's reader starts
// immediately; call RetrieveDictionary before sending commands by name.
func New(port io.ReadWriteCloser) *MCU {
	m := &MCU{
		transport: protocol.NewHostTransport(port),
		Timeout:   DefaultTimeout,
		handlers:  make(map[string][]func(*Response)),
	}
	m.transport.SetResponseHandler(m.handleResponse)
	return m
}

// Connect opens the serial device, retrying while it is absent (the board
// re-enumerates for a while after a reset), and attaches to it.
func Connect(cfg serial.Config) (*MCU, error) {
	var port serial.Port
	op := func() error {
		p, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		port = p
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	return New(port), nil
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	return m.transport.Close()
}

// Dictionary returns the parsed dictionary, nil before retrieval
func (m *MCU) Dictionary() *Dictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionary
}

// DictionaryRaw returns the dictionary as received
func (m *MCU) DictionaryRaw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionaryData
}

// RetrieveDictionary reads the complete dictionary from the MCU
func (m *MCU) RetrieveDictionary() error {
	var dict bytes.Buffer
	for dict.Len() < maxDictionary {
		chunk, err := m.identify(uint32(dict.Len()))
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", dict.Len(), err)
		}
		dict.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}

	d, err := ParseDictionary(dict.Bytes())
	if err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	m.mu.Lock()
	m.dictionaryData = dict.Bytes()
	m.dictionary = d
	m.mu.Unlock()
	return nil
}

// identify requests one dictionary chunk
func (m *MCU) identify(offset uint32) ([]byte, error) {
	payload, err := identifyFormat.Encode(offset, identifyChunk)
	if err != nil {
		return nil, err
	}
	resp, err := m.roundTrip(payload, "identify_response", func(r *Response) bool {
		return r.Uint("offset") == offset
	})
	if err != nil {
		return nil, err
	}
	return resp.Data["data"], nil
}

// Send encodes and sends a command, waiting only for its ACK
func (m *MCU) Send(name string, args ...interface{}) error {
	payload, err := m.encode(name, args...)
	if err != nil {
		return err
	}
	return m.transport.SendPayload(payload, m.Timeout)
}

// Query sends a command and waits for the response named respName that
// satisfies match (nil matches any).
func (m *MCU) Query(respName string, match func(*Response) bool, name string, args ...interface{}) (*Response, error) {
	payload, err := m.encode(name, args...)
	if err != nil {
		return nil, err
	}
	return m.roundTrip(payload, respName, match)
}

func (m *MCU) encode(name string, args ...interface{}) ([]byte, error) {
	d := m.Dictionary()
	if d == nil {
		return nil, fmt.Errorf("dictionary not loaded")
	}
	mf, err := d.Command(name)
	if err != nil {
		return nil, err
	}
	return mf.Encode(args...)
}

// roundTrip registers the waiter before sending so a response that
// arrives with the ACK is not missed.
func (m *MCU) roundTrip(payload []byte, respName string, match func(*Response) bool) (*Response, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	w := m.expect(respName, match)
	defer m.cancel(w)
	if err := m.transport.SendPayload(payload, m.Timeout); err != nil {
		return nil, err
	}
	return m.wait(w, m.Timeout)
}

func (m *MCU) expect(name string, match func(*Response) bool) *waiter {
	w := &waiter{name: name, match: match, ch: make(chan *Response, 1)}
	m.mu.Lock()
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	return w
}

func (m *MCU) cancel(w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.waiters {
		if x == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

func (m *MCU) wait(w *waiter, timeout time.Duration) (*Response, error) {
	select {
	case r := <-w.ch:
		return r, nil
	case <-time.After(timeout):
		name := w.name
		if name == "" {
			name = "matching"
		}
		return nil, fmt.Errorf("no %s response after %v", name, timeout)
	}
}

// Subscribe calls fn for every response named name. fn runs on the
// transport's reader goroutine and must not send commands.
func (m *MCU) Subscribe(name string, fn func(*Response)) {
	m.mu.Lock()
	m.handlers[name] = append(m.handlers[name], fn)
	m.mu.Unlock()
}

// handleResponse decodes one response and hands it to the first matching
// waiter and to every subscriber.
func (m *MCU) handleResponse(cmdID uint16, data *[]byte) error {
	var mf *MessageFormat
	if d := m.Dictionary(); d != nil {
		mf, _ = d.Response(int(cmdID))
	} else if cmdID == identifyResponseID {
		mf = identifyResponseFormat
	}
	if mf == nil {
		return fmt.Errorf("unknown response id %d", cmdID)
	}
	r, err := mf.Decode(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for i, w := range m.waiters {
		if (w.name == "" || w.name == r.Name) && (w.match == nil || w.match(r)) {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			w.ch <- r
			break
		}
	}
	handlers := m.handlers[r.Name]
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(r)
	}
	return nil
}

// Clock reads the MCU's scheduling clock
func (m *MCU) Clock() (uint32, error) {
	r, err := m.Query("clock", nil, "get_clock")
	if err != nil {
		return 0, err
	}
	return r.Uint("clock"), nil
}
