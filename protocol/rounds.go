//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package protocol

// Continue tells the keymaster whether another round follows. It
// sequences repeated CompareEncrypted calls served by
// Keymaster.ServeCompareEncrypted.
func (ev *Evaluator) Continue(more bool) error {
	if err := ev.conn.SendBoolean(more); err != nil {
		return err
	}
	return ev.conn.Flush()
}

// ServeCompareEncrypted serves CompareEncrypted rounds, each preceded
// by the evaluator's Continue(true), until the evaluator calls
// Continue(false). It returns the number of rounds served.
func (km *Keymaster) ServeCompareEncrypted() (int, error) {
	var rounds int
	for {
		more, err := km.conn.ReceiveBoolean()
		if err != nil {
			return rounds, err
		}
		if !more {
			return rounds, nil
		}
		if _, err := km.CompareEncrypted(); err != nil {
			return rounds, err
		}
		rounds++
	}
}
