package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that accepts human-readable values such as
// "100MiB", "2 GB" or a plain number of bytes.
type ByteSize uint64

// Decode implements envconfig.Decoder.
func (b *ByteSize) Decode(value string) error {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}

	*b = ByteSize(n)

	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	return b.Decode(node.Value)
}

func (b ByteSize) Bytes() uint64 {
	return uint64(b)
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
