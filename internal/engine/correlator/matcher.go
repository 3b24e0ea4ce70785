package correlator

import (
	"TraceCorrelator/internal/model"
)

// DelayIndex maps a sequence id to the time it was sent. A recurring id
// (retransmission) overwrites the earlier timestamp.
type DelayIndex map[string]float64

// MatchFlow correlates one flow. Data records and ack records are selected from
// each trace by comparing their key with the flow's signatures:
//
//	sender trace:   Data -> DataSent,     Ack -> AckReceived
//	receiver trace: Data -> DataReceived, Ack -> AckSent
//
// Each received data record whose sequence id was seen on the sender side
// contributes one delay sample. MatchFlow only reads the event slices.
func MatchFlow(pair model.FlowPair, sig model.Signatures, sender, receiver []model.TraceEvent) model.FlowResult {
	res := model.FlowResult{Pair: pair}
	index := make(DelayIndex)

	for i := range sender {
		ev := &sender[i]
		switch ev.Key {
		case sig.Data:
			res.Tally.DataSent++
			if ev.Malformed {
				res.Malformed++
				continue
			}
			index[ev.SequenceID] = ev.Timestamp
		case sig.Ack:
			res.Tally.AckReceived++
		}
	}

	for i := range receiver {
		ev := &receiver[i]
		switch ev.Key {
		case sig.Data:
			res.Tally.DataReceived++
			if ev.Malformed {
				res.Malformed++
				continue
			}
			sent, ok := index[ev.SequenceID]
			if !ok {
				res.Unmatched++
				continue
			}
			res.Delay.Sum += ev.Timestamp - sent
			res.Delay.Count++
		case sig.Ack:
			res.Tally.AckSent++
		}
	}

	return res
}
