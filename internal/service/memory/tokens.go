package memory

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter counts tokens with the gpt-4o encoding. The encoding is
// loaded lazily on first use because tiktoken fetches its vocabulary.
type TiktokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{}
}

func (t *TiktokenCounter) Count(text string) (int, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.EncodingForModel("gpt-4o")
	})
	if t.err != nil {
		return 0, fmt.Errorf("load gpt-4o encoding: %w", t.err)
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
