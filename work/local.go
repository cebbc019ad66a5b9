package work

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

//LocalSource is a self-contained work source: it generates one random
//template at Start and derives the target from a difficulty setting. Matches
//are logged, not submitted anywhere. It exists so the search pipeline can run
//without any network; a pool client implements the same Source interface.
type LocalSource struct {
	TemplateSize int
	//Difficulty divides the 64 bit space: target = MaxUint64 / Difficulty.
	Difficulty uint64
	Log        zerolog.Logger

	mu       sync.Mutex
	template []byte
}

//Start generates the template the whole run will search on.
func (s *LocalSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = make([]byte, s.TemplateSize)
	if _, err := rand.Read(s.template); err != nil {
		s.Log.Fatal().Err(err).Msg("generating work template")
	}
	s.Log.Info().Int("bytes", s.TemplateSize).Msg("generated local work template")
}

//TemplateForWork returns a copy of the template and the current target.
func (s *LocalSource) TemplateForWork() ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.template == nil {
		return nil, 0, errors.New("work source not started")
	}
	difficulty := s.Difficulty
	if difficulty == 0 {
		difficulty = 1
	}
	tmpl := append([]byte(nil), s.template...)
	return tmpl, ^uint64(0) / difficulty, nil
}

//SubmitMatch logs the winning nonce.
func (s *LocalSource) SubmitMatch(m Match) error {
	s.Log.Info().
		Uint32("nonce", m.Nonce).
		Str("digestTop64", fmt.Sprintf("%016x", m.DigestTop64)).
		Msg("digest below target")
	return nil
}
