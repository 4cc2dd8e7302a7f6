package session

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wbrc/legacy"
)

// Decrypt collects a quorum of key files and opens the ciphertext in the
// encrypted directory. It returns the plaintext path.
func Decrypt(ctx context.Context, s *Session) (string, error) {
	ciphertext, err := legacy.LocateCiphertext(s.layout.EncryptedDir)
	if err != nil {
		return "", err
	}
	policy, policyPath, err := legacy.LoadPolicy(s.layout.EncryptedDir)
	if err != nil {
		return "", err
	}
	s.log.Info("decrypt session ready",
		zap.String("ciphertext", filepath.Base(ciphertext)),
		zap.String("policy", filepath.Base(policyPath)),
		zap.Int("threshold", policy.Threshold),
		zap.Int("total", policy.Total()),
	)

	s.startSteps(policy.Threshold + 3)
	s.ui.Clear()
	s.banner("Getting Started")
	s.ui.Plain("This tool will help you access sensitive information that has been securely encrypted.")
	s.ui.Info("You will need %d out of %d total key files to unlock this information.", policy.Threshold, policy.Total())
	s.ui.Plain("Please follow the prompts to select each key file when requested.")
	if err := s.ui.Pause(ctx, "Press Enter to begin..."); err != nil {
		return "", err
	}

	collector, err := legacy.NewCollector(policy, s.tools,
		legacy.WithLogger(s.log),
		legacy.AllowRepeatedIdentity(s.allowRepeated),
	)
	if err != nil {
		return "", err
	}
	secrets, err := collector.Collect(ctx, &keySource{s: s, firstStep: s.step})
	if err != nil {
		return "", err
	}
	s.step += len(secrets)

	s.banner("Send For Decryption")
	identity, err := legacy.Combine(ctx, s.tools, secrets)
	s.ui.Status("Processing keys...", err == nil)
	if err != nil {
		return "", err
	}

	out, err := s.gateway().Decrypt(ctx, ciphertext, identity, s.layout.OutputDir)
	s.ui.Status("Decrypting your information...", err == nil)
	if err != nil {
		return "", err
	}
	s.ui.Success("Your information has been decrypted.")
	s.ui.Plain("The decrypted file has been saved to:\n%s", out)

	s.banner("View Decrypted File")
	open, err := s.ui.Confirm(ctx, "Would you like to open the file now?")
	if err != nil {
		return out, err
	}
	if open {
		if err := s.open(ctx, out); err != nil {
			s.log.Warn("failed to open decrypted file", zap.Error(err))
			s.ui.Failure("Error opening file: %v", err)
			s.ui.Plain("Please manually open: %s", out)
		}
	}
	return out, nil
}

// keySource asks the user for key files and narrates every verdict.
type keySource struct {
	s         *Session
	firstStep int
}

func (k *keySource) Next(ctx context.Context, keyNumber int) (string, error) {
	ui := k.s.ui
	ui.Banner(fmt.Sprintf("[Step %d of %d] Upload Key Number %d", k.firstStep+keyNumber, k.s.steps, keyNumber))
	path, err := ui.ChooseFile(ctx, fmt.Sprintf("Select key file number %d", keyNumber), k.s.layout.KeysDir)
	if err != nil {
		if legacy.IsCancelled(err) {
			return "", err
		}
		return "", &legacy.Error{Code: legacy.CandidateUnavailable, Detail: "error selecting file", Err: err}
	}
	ui.Plain("You uploaded: %s", filepath.Base(path))
	return path, nil
}

func (k *keySource) Rejected(ctx context.Context, path string, err error) error {
	ui := k.s.ui
	if path == "" {
		ui.Status("Loading file...", false)
		ui.Failure("%s", Describe(err))
		retry, cerr := ui.Confirm(ctx, "Would you like to try again?")
		if cerr != nil {
			return cerr
		}
		if !retry {
			return &legacy.Error{Code: legacy.UserCancelled, Detail: "you terminated the program"}
		}
		return nil
	}

	// A tool that hangs will hang for the next key too.
	if legacy.CodeOf(err) == legacy.ToolTimeout {
		return err
	}

	switch legacy.CodeOf(err) {
	case legacy.AlreadyJudged, legacy.CandidateUnavailable:
		ui.Status("Loading file...", false)
	case legacy.InvalidFormat:
		ui.Status("Extracting secret key...", false)
	default:
		ui.Status("Validating secret key...", false)
	}
	ui.Failure("%s", Describe(err))
	if legacy.KindOf(err) == legacy.KindCandidate || legacy.CodeOf(err) == legacy.MalformedSecret {
		ui.Warn("Please select a different key.")
	}
	return nil
}

func (k *keySource) Accepted(_ context.Context, _ string, state legacy.QuorumState) error {
	ui := k.s.ui
	ui.Status("Validating secret key...", true)
	ui.Success("Key accepted.")
	ui.Progress(len(state.Collected), state.Required)

	if remaining := state.Remaining(); remaining > 0 {
		plural := "s"
		if remaining == 1 {
			plural = ""
		}
		ui.Plain("You need %d more key%s to unlock your information.", remaining, plural)
	} else {
		ui.Success("All required keys have been provided!")
	}
	return nil
}
