package llm

import "context"

// Fake is a deterministic in-memory Client for tests. When Response is
// empty it echoes a predictable single-file proposal built from the
// inputs so callers can assert on what reached the model.
type Fake struct {
	Response string
	Err      error
	Calls    []FakeCall
}

// FakeCall records one GenerateProposal invocation.
type FakeCall struct {
	Instructions string
	Body         string
	VaultContext string
	Skeleton     string
}

// GenerateProposal implements Client.
func (f *Fake) GenerateProposal(_ context.Context, instructions, body, vaultContext, skeleton string) (string, error) {
	f.Calls = append(f.Calls, FakeCall{
		Instructions: instructions,
		Body:         body,
		VaultContext: vaultContext,
		Skeleton:     skeleton,
	})
	if f.Err != nil {
		return "", f.Err
	}
	if f.Response != "" {
		return f.Response, nil
	}
	return "%%FILE: proposal.md%%\n---\n" + body + "\n---\n" + vaultContext, nil
}

var _ Client = (*Fake)(nil)
