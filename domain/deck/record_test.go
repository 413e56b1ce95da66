package deck

import (
	"bytes"
	"testing"
)

func disclose(t *testing.T, records []*Record, position int) []Disclosure {
	t.Helper()
	var out []Disclosure
	pos := position
	for i := len(records) - 1; i >= 0; i-- {
		d, err := records[i].Disclose(pos)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, d)
		pos = d.Source
	}
	return out
}

func TestRecordVerify(t *testing.T) {
	d, records, c, kp := twoStageDeck(t, 8)
	for pos := 0; pos < d.Size; pos++ {
		disclosures := disclose(t, records, pos)
		card, err := d.Card(pos)
		if err != nil {
			t.Fatal(err)
		}
		ct, err := card.Open(disclosures[0].Pad, disclosures[1].Pad)
		if err != nil {
			t.Fatal(err)
		}
		v, err := c.Decrypt(kp, ct)
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range records {
			if err := rec.Verify(d, pos, disclosures, ct, v); err != nil {
				t.Fatalf("peer %d rejected an honest reveal: %v", rec.Rank, err)
			}
		}
		if err := records[0].Verify(d, pos, disclosures, ct, (v+1)%8); err == nil {
			t.Fatal("opening stage accepted a false claim")
		}
	}
}

func TestRecordVerifyDetectsForgedDisclosure(t *testing.T) {
	d, records, _, _ := twoStageDeck(t, 8)
	disclosures := disclose(t, records, 3)

	broken := append([]Disclosure(nil), disclosures...)
	broken[0].Source = (broken[0].Source + 1) % 8
	if err := Trace(3, 2, broken); err == nil {
		t.Fatal("trace accepted a broken chain")
	}
	if err := records[1].Verify(d, 3, broken, nil, 0); err == nil {
		t.Fatal("peer 1 accepted a source it never applied")
	}

	wrongPad := append([]Disclosure(nil), disclosures...)
	wrongPad[1].Pad = bytes.Repeat([]byte{0}, len(wrongPad[1].Pad))
	if err := records[0].Verify(d, 3, wrongPad, nil, 0); err == nil {
		t.Fatal("peer 0 accepted a pad it never applied")
	}
	if err := Trace(3, 2, disclosures[:1]); err == nil {
		t.Fatal("trace accepted a missing layer")
	}
}
