// Package mock provides test doubles for the ai package interfaces.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	mp := provider.(*mock.MockProvider)
//
//	// Make answer generation fail
//	mp.GetMockGenerator().GenerateAnswerFunc = func(ctx context.Context, q string, f []core.Fragment, h []core.Exchange) (*ai.Answer, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := mp.GetMockEmbedder().CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: deterministic unit vectors derived from an FNV hash of the text
//   - MockGenerator: echoes the question and fragment count; condensing is a no-op
//   - MockProvider: aggregates the two
package mock
