package core

// PairTurns folds an ordered transcript into exchanges. Each user turn opens a
// new exchange; the next assistant turn completes it. An assistant turn with
// no open exchange becomes an exchange with empty input.
func PairTurns(turns []Turn) []Exchange {
	exchanges := make([]Exchange, 0, len(turns))
	open := -1
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			exchanges = append(exchanges, Exchange{Input: turn.Content})
			open = len(exchanges) - 1
		case RoleAssistant:
			if open >= 0 {
				exchanges[open].Output = turn.Content
				open = -1
				continue
			}
			exchanges = append(exchanges, Exchange{Output: turn.Content})
		}
	}
	return exchanges
}

// FlattenExchanges turns exchanges back into a transcript. Both sides of every
// exchange are emitted, empty or not, so PairTurns reproduces the same pairing.
func FlattenExchanges(exchanges []Exchange) []Turn {
	turns := make([]Turn, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		turns = append(turns,
			Turn{Role: RoleUser, Content: ex.Input},
			Turn{Role: RoleAssistant, Content: ex.Output},
		)
	}
	return turns
}
