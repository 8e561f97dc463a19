package holdem

// ActionOption describes one action legal for t.ActivePlayerID right
// now. MinAmount/MaxAmount are the resulting street-bet total a
// Bet/Raise/AllIn must target, matching ProcessAction's amount
// semantics (spec.md §6.2: amount is the total, not the delta).
type ActionOption struct {
	Action    ActionType
	MinAmount int64
	MaxAmount int64
}

// LegalActions enumerates what the active player may do. It is a pure
// query over t — computing it never mutates state and is safe to call
// purely for display (action prompts, bot decision-making).
func LegalActions(t Table) []ActionOption {
	if t.ActivePlayerID == "" {
		return nil
	}
	p, ok := t.Players[t.ActivePlayerID]
	if !ok {
		return nil
	}

	var out []ActionOption
	out = append(out, ActionOption{Action: ActionFold})

	if p.StreetBet == t.CurrentHighBet {
		out = append(out, ActionOption{Action: ActionCheck})
	} else {
		toCall := t.CurrentHighBet - p.StreetBet
		if toCall > p.Stack {
			toCall = p.Stack
		}
		total := p.StreetBet + toCall
		out = append(out, ActionOption{Action: ActionCall, MinAmount: total, MaxAmount: total})
	}

	allInTarget := p.StreetBet + p.Stack
	if p.Stack > 0 {
		if t.CurrentHighBet == 0 {
			minBet := t.BigBlind
			if minBet > allInTarget {
				minBet = allInTarget
			}
			out = append(out, ActionOption{Action: ActionBet, MinAmount: minBet, MaxAmount: allInTarget})
		} else {
			minRaise := t.CurrentHighBet + t.MinRaiseIncrement()
			if allInTarget >= minRaise {
				out = append(out, ActionOption{Action: ActionRaise, MinAmount: minRaise, MaxAmount: allInTarget})
			}
		}
		out = append(out, ActionOption{Action: ActionAllIn, MinAmount: allInTarget, MaxAmount: allInTarget})
	}
	return out
}

// HasAction reports whether opts contains the given action type.
func HasAction(opts []ActionOption, action ActionType) (ActionOption, bool) {
	for _, o := range opts {
		if o.Action == action {
			return o, true
		}
	}
	return ActionOption{}, false
}
