package legacy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Combine builds the decryption identity from exactly the collected secrets,
// in collection order.
func Combine(ctx context.Context, c Combiner, secrets []Secret) (CombinedIdentity, error) {
	if len(secrets) == 0 {
		return CombinedIdentity{}, &Error{Code: CombinationFailed, Detail: "no secrets collected"}
	}
	ordered := make([]Secret, len(secrets))
	copy(ordered, secrets)

	id, err := c.CombineIdentities(ctx, ordered)
	if err != nil {
		return CombinedIdentity{}, asCode(err, CombinationFailed)
	}
	if id.Path == "" {
		return CombinedIdentity{}, &Error{Code: CombinationFailed, Detail: "failed to generate combined identity from keys"}
	}
	return id, nil
}

// DeriveRecipient builds the threshold recipient from the saved policy
// artifact at policyPath.
func DeriveRecipient(ctx context.Context, d RecipientDeriver, policyPath string) (Recipient, error) {
	if _, err := os.Stat(policyPath); errors.Is(err, fs.ErrNotExist) {
		return "", Errorf(PolicyFileNotFound, "key configuration file not found at %s", policyPath)
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", policyPath, err)
	}

	r, err := d.DeriveRecipient(ctx, policyPath)
	if err != nil {
		return "", asCode(err, RecipientGenerationFailed)
	}
	r = Recipient(strings.TrimSpace(string(r)))
	if r == "" {
		return "", &Error{Code: EmptyRecipient, Detail: "please check the key configuration file"}
	}
	return r, nil
}

// asCode keeps library errors as they are and files anything else under
// code.
func asCode(err error, code Code) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: code, Err: err}
}
