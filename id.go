package redirect

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// IDByteLength is the number of CSPRNG bytes in ids produced by NewID, which
// gives every generated state and nonce 256 bits of entropy.
const IDByteLength = 32

// NewID generates an opaque URL-safe value suitable for use as a single-use
// state or nonce. Supported options: WithPrefix.
func NewID(opt ...Option) (string, error) {
	const op = "redirect.NewID"
	opts := getIDOpts(opt...)
	data, err := uuid.GenerateRandomBytes(IDByteLength)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %v", op, ErrIDGeneratorFailed, err)
	}
	id := base64.RawURLEncoding.EncodeToString(data)
	if opts.withPrefix != "" {
		return fmt.Sprintf("%s_%s", opts.withPrefix, id), nil
	}
	return id, nil
}

// idOptions is the set of available options for NewID
type idOptions struct {
	withPrefix string
}

// idDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func idDefaults() idOptions {
	return idOptions{}
}

// getIDOpts gets the id defaults and applies the opt overrides passed in
func getIDOpts(opt ...Option) idOptions {
	opts := idDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
