// Package httpapi exposes the DAC channels over HTTP with a small JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"gopdac/host/mcu"
	"gopdac/host/wave"
)

// DAC is the channel surface the server drives
type DAC interface {
	Write(value uint8) error
	Noise(freq uint32) error
	Triangle(freq uint32) error
	// Play streams samples and returns once the stream has started
	Play(samples []byte, freq uint32, mode string) error
	Query() (*mcu.State, error)
}

// MCUDAC adapts a firmware DAC client. Play does not wait for the
// transfer to finish.
type MCUDAC struct {
	*mcu.DAC
}

// Play implements DAC
func (d MCUDAC) Play(samples []byte, freq uint32, mode string) error {
	xfer, err := d.DAC.Play(samples, freq, mode)
	if err != nil {
		return err
	}
	xfer.Release()
	return nil
}

type valueRequest struct {
	Value uint8 `json:"value"`
}

type freqRequest struct {
	Freq uint32 `json:"freq"`
}

// playRequest carries either raw samples or a waveform to render. With a
// waveform, SignalHz sets the rate unless Freq is given.
type playRequest struct {
	Samples  []int        `json:"samples,omitempty"`
	Wave     *wave.Params `json:"wave,omitempty"`
	Freq     uint32       `json:"freq"`
	SignalHz float64      `json:"signal_hz,omitempty"`
	Mode     string       `json:"mode"`
}

// NewRouter returns a router serving dacs, keyed by channel name
func NewRouter(dacs map[string]DAC) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Get("/dac", list(dacs))
	root.Route("/dac/{name}", func(r chi.Router) {
		r.Get("/", query(dacs))
		r.Post("/write", write(dacs))
		r.Post("/noise", generator(dacs, DAC.Noise))
		r.Post("/triangle", generator(dacs, DAC.Triangle))
		r.Post("/play", play(dacs))
	})
	return root
}

// lookup resolves the {name} parameter, answering 404 itself
func lookup(dacs map[string]DAC, w http.ResponseWriter, r *http.Request) (DAC, bool) {
	d, ok := dacs[chi.URLParam(r, "name")]
	if !ok {
		http.Error(w, "no such DAC channel", http.StatusNotFound)
	}
	return d, ok
}

// fail reports a firmware status as a client error and anything else as
// a server error
func fail(w http.ResponseWriter, err error) {
	var se *mcu.StatusError
	if errors.As(err, &se) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func list(dacs map[string]DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0, len(dacs))
		for name := range dacs {
			names = append(names, name)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	}
}

func query(dacs map[string]DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := lookup(dacs, w, r)
		if !ok {
			return
		}
		st, err := d.Query()
		if err != nil {
			fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(st)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func write(dacs map[string]DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := lookup(dacs, w, r)
		if !ok {
			return
		}
		var input valueRequest
		err := json.NewDecoder(r.Body).Decode(&input)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = d.Write(input.Value); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func generator(dacs map[string]DAC, start func(DAC, uint32) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := lookup(dacs, w, r)
		if !ok {
			return
		}
		var input freqRequest
		err := json.NewDecoder(r.Body).Decode(&input)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = start(d, input.Freq); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func play(dacs map[string]DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := lookup(dacs, w, r)
		if !ok {
			return
		}
		var input playRequest
		err := json.NewDecoder(r.Body).Decode(&input)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		samples, freq, err := input.render()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode := input.Mode
		if mode == "" {
			mode = mcu.ModeCircular
		}
		if err = d.Play(samples, freq, mode); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// render produces the sample table and sample rate of a play request
func (p playRequest) render() ([]byte, uint32, error) {
	var samples []byte
	switch {
	case p.Wave != nil && len(p.Samples) > 0:
		return nil, 0, errors.New("give either samples or wave, not both")
	case p.Wave != nil:
		var err error
		samples, err = wave.Table(*p.Wave)
		if err != nil {
			return nil, 0, err
		}
	case len(p.Samples) > 0:
		samples = make([]byte, len(p.Samples))
		for i, v := range p.Samples {
			if v < 0 || v > 255 {
				return nil, 0, errors.New("samples must be in [0, 255]")
			}
			samples[i] = byte(v)
		}
	default:
		return nil, 0, errors.New("no samples")
	}

	freq := p.Freq
	if freq == 0 && p.SignalHz > 0 {
		var err error
		freq, err = wave.SampleRate(p.SignalHz, len(samples))
		if err != nil {
			return nil, 0, err
		}
	}
	return samples, freq, nil
}
