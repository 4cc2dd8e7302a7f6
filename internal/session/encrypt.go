package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/wbrc/legacy"
)

const (
	// MaxGeneratedKeys bounds how many identities one run may generate.
	MaxGeneratedKeys = 10

	keyFilePrefix = "Key for Digital Legacy - "
)

const (
	modeGenerate = 1
	modeReuse    = 2
)

// KeyFileName is the name of the key file handed to the holder called name.
func KeyFileName(name string) string {
	return keyFilePrefix + name + legacy.PolicyExt
}

// Encrypt asks for a source file, authors or reuses the policy in the
// encrypted directory and seals the file for it. It returns the ciphertext
// path.
func Encrypt(ctx context.Context, s *Session) (string, error) {
	policyPath, created, err := legacy.GenerateBlankPolicy(s.layout.EncryptedDir)
	if err != nil {
		return "", err
	}
	if created {
		s.log.Info("wrote blank policy", zap.String("policy", filepath.Base(policyPath)))
	}
	earlier, err := filepath.Glob(filepath.Join(s.layout.EncryptedDir, "*"+legacy.CiphertextExt))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", s.layout.EncryptedDir, err)
	}

	s.startSteps(6)
	s.ui.Clear()
	s.banner("Welcome")
	s.ui.Plain("This tool will help you encrypt sensitive information so that it can only be")
	s.ui.Plain("opened when enough key holders bring their keys together.")
	if err := s.ui.Pause(ctx, "Press Enter to begin..."); err != nil {
		return "", err
	}

	s.banner("Select File to Encrypt")
	src, err := s.ui.ChooseFile(ctx, "Select the file to encrypt", s.layout.OutputDir)
	if err != nil {
		if legacy.IsCancelled(err) {
			return "", err
		}
		return "", &legacy.Error{Code: legacy.SourceInvalid, Detail: "no file selected", Err: err}
	}
	if err := legacy.CheckEncryptable(src); err != nil {
		return "", err
	}
	s.ui.Plain("You selected: %s", filepath.Base(src))

	s.banner("Configure Encryption Keys")
	s.ui.Plain("1. Generate new key files")
	s.ui.Plain("2. Use the existing key configuration (%s)", filepath.Base(policyPath))
	mode, err := s.ui.AskInt(ctx, "Enter your choice (1-2): ", modeGenerate, modeReuse)
	if err != nil {
		return "", err
	}
	switch mode {
	case modeGenerate:
		err = s.generateKeys(ctx, policyPath)
	default:
		err = s.reusePolicy(ctx, policyPath)
	}
	if err != nil {
		return "", err
	}

	s.banner("Generate Encryption Configuration")
	recipient, err := legacy.DeriveRecipient(ctx, s.tools, policyPath)
	s.ui.Status("Generating encryption configuration...", err == nil)
	if err != nil {
		return "", err
	}

	s.banner("Encrypt Your Information")
	out, err := s.gateway().Encrypt(ctx, src, recipient, s.layout.EncryptedDir)
	s.ui.Status("Encrypting your information...", err == nil)
	if err != nil {
		return "", err
	}
	s.ui.Success("Your information has been encrypted.")
	s.ui.Plain("The encrypted file has been saved to:\n%s", out)
	if len(earlier) > 0 {
		s.log.Warn("encrypted directory holds more than one ciphertext", zap.Int("earlier", len(earlier)))
		s.ui.Warn("%s already held %d other encrypted file(s). Decryption needs exactly one, so move the others away.",
			s.layout.EncryptedDir, len(earlier))
	}

	s.banner("Encryption Complete")
	s.ui.Info("IMPORTANT REMINDERS:")
	s.ui.Plain("  - Distribute the key files to their holders and delete your copies.")
	s.ui.Plain("  - Keep %s together with the encrypted file.", filepath.Base(policyPath))
	s.ui.Plain("  - Test decryption before relying on it.")
	return out, nil
}

// generateKeys creates fresh identities, writes one key file per holder and
// replaces the policy at policyPath with them.
func (s *Session) generateKeys(ctx context.Context, policyPath string) error {
	total, err := s.ui.AskInt(ctx, fmt.Sprintf("How many key files would you like to generate? (1-%d): ", MaxGeneratedKeys), 1, MaxGeneratedKeys)
	if err != nil {
		return err
	}
	threshold, err := s.ui.AskInt(ctx, fmt.Sprintf("How many keys should be required to decrypt? (1-%d): ", total), 1, total)
	if err != nil {
		return err
	}
	names, err := s.askNames(ctx, total)
	if err != nil {
		return err
	}

	if err := s.confirmOverwrite(ctx, policyPath); err != nil {
		return err
	}
	if err := os.MkdirAll(s.layout.GeneratedKeysDir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.layout.GeneratedKeysDir, err)
	}

	policy := &legacy.RecipientPolicy{Threshold: threshold}
	for i, name := range names {
		kp, err := s.tools.GenerateKeypair(ctx)
		if err != nil {
			s.ui.Status(fmt.Sprintf("Generating key %d of %d...", i+1, total), false)
			return err
		}
		path := filepath.Join(s.layout.GeneratedKeysDir, KeyFileName(name))
		if err := renameio.WriteFile(path, kp.Material, 0o600); err != nil {
			return fmt.Errorf("failed to write key file %s: %w", filepath.Base(path), err)
		}
		s.ui.Status(fmt.Sprintf("Generating key %d of %d...", i+1, total), true)
		s.log.Debug("generated key", zap.String("holder", name), zap.String("public", string(kp.Public)))
		policy.Identities = append(policy.Identities, kp.Public)
	}

	if err := legacy.SavePolicy(policy, policyPath, true); err != nil {
		return err
	}
	s.ui.Success("Key files created in %s", s.layout.GeneratedKeysDir)
	s.ui.Info("At least %d out of %d keys will be required to decrypt.", threshold, total)
	return nil
}

func (s *Session) askNames(ctx context.Context, total int) ([]string, error) {
	names := make([]string, 0, total)
	seen := make(map[string]bool, total)
	for i := 1; i <= total; {
		def := fmt.Sprintf("Key%d", i)
		name, err := s.ui.AskString(ctx, fmt.Sprintf("Enter a name for key %d", i), def)
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			name = def
		case strings.ContainsAny(name, `/\:*?"<>|`):
			s.ui.Failure("Key names cannot contain any of / \\ : * ? \" < > |")
			continue
		}
		if seen[strings.ToLower(name)] {
			s.ui.Failure("The name %q is already used. Please choose another.", name)
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
		i++
	}
	return names, nil
}

// confirmOverwrite asks before a configured policy is replaced. The blank
// placeholder is replaced without asking.
func (s *Session) confirmOverwrite(ctx context.Context, policyPath string) error {
	data, err := os.ReadFile(policyPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && legacy.IsBlankPolicy(data)) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read policy %s: %w", policyPath, err)
	}
	ok, err := s.ui.Confirm(ctx, fmt.Sprintf("%s already exists. Do you want to overwrite it?", filepath.Base(policyPath)))
	if err != nil {
		return err
	}
	if !ok {
		return legacy.Errorf(legacy.OverwriteDeclined, "kept the existing %s", filepath.Base(policyPath))
	}
	return nil
}

// reusePolicy lets the user edit the existing policy and checks it parses.
func (s *Session) reusePolicy(ctx context.Context, policyPath string) error {
	edit, err := s.ui.Confirm(ctx, "Would you like to open the key configuration file to make changes?")
	if err != nil {
		return err
	}
	if edit {
		if err := s.open(ctx, policyPath); err != nil {
			s.log.Warn("failed to open policy", zap.Error(err))
			s.ui.Failure("Error opening file: %v", err)
			s.ui.Plain("Please manually open: %s", policyPath)
		}
		if err := s.ui.Pause(ctx, "Press Enter when you have finished making changes and saved the file: "); err != nil {
			return err
		}
	}

	policy, err := legacy.ReadPolicy(policyPath)
	if err != nil {
		return err
	}
	s.ui.Success("Using %s", filepath.Base(policyPath))
	s.ui.Info("At least %d out of %d keys will be required to decrypt.", policy.Threshold, policy.Total())
	return nil
}
