package registry

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	wutag "github.com/wutag-go/wutag"
)

func containsTagID(impls []wutag.Implication, tagID int64) bool {
	for _, i := range impls {
		if i.ImpliedTagID == tagID {
			return true
		}
	}
	return false
}

func TestImplicationsForTransitiveChain(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		t1, err := txn.InsertTag("t1", wutag.DefaultColor)
		if err != nil {
			return err
		}
		t2, err := txn.InsertTag("t2", wutag.DefaultColor)
		if err != nil {
			return err
		}
		t3, err := txn.InsertTag("t3", wutag.DefaultColor)
		if err != nil {
			return err
		}

		if err := txn.InsertImplication(wutag.Implication{
			TagID: t1.ID, ValueID: wutag.NoValueID,
			ImpliedTagID: t2.ID, ImpliedValueID: wutag.NoValueID,
		}); err != nil {
			return err
		}
		if err := txn.InsertImplication(wutag.Implication{
			TagID: t2.ID, ValueID: wutag.NoValueID,
			ImpliedTagID: t3.ID, ImpliedValueID: wutag.NoValueID,
		}); err != nil {
			return err
		}

		closure, err := txn.ImplicationsFor([]wutag.FileTag{{TagID: t1.ID, ValueID: wutag.NoValueID}})
		if err != nil {
			return err
		}
		if !containsTagID(closure, t2.ID) {
			t.Errorf("closure %v does not contain directly implied t2 (%d)", closure, t2.ID)
		}
		if !containsTagID(closure, t3.ID) {
			t.Errorf("closure %v does not contain transitively implied t3 (%d)", closure, t3.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestImplicationsForClosureMatchesExpectedSet(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		root, err := txn.InsertTag("root", wutag.DefaultColor)
		if err != nil {
			return err
		}
		left, err := txn.InsertTag("left", wutag.DefaultColor)
		if err != nil {
			return err
		}
		right, err := txn.InsertTag("right", wutag.DefaultColor)
		if err != nil {
			return err
		}
		for _, to := range []wutag.Tag{left, right} {
			if err := txn.InsertImplication(wutag.Implication{
				TagID: root.ID, ValueID: wutag.NoValueID,
				ImpliedTagID: to.ID, ImpliedValueID: wutag.NoValueID,
			}); err != nil {
				return err
			}
		}

		closure, err := txn.ImplicationsFor([]wutag.FileTag{{TagID: root.ID, ValueID: wutag.NoValueID}})
		if err != nil {
			return err
		}
		var gotIDs []int64
		for _, im := range closure {
			gotIDs = append(gotIDs, im.ImpliedTagID)
		}
		sort.Slice(gotIDs, func(i, j int) bool { return gotIDs[i] < gotIDs[j] })

		wantIDs := []int64{root.ID, left.ID, right.ID}
		sort.Slice(wantIDs, func(i, j int) bool { return wantIDs[i] < wantIDs[j] })

		if diff := cmp.Diff(wantIDs, gotIDs); diff != "" {
			t.Errorf("ImplicationsFor closure ids mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestImplicationsForEmptySeedsFails(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		_, err := txn.ImplicationsFor(nil)
		if err == nil {
			t.Error("expected an error for an empty seed list")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeleteImplicationByTagIDCascades(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		t1, err := txn.InsertTag("cascade-from", wutag.DefaultColor)
		if err != nil {
			return err
		}
		t2, err := txn.InsertTag("cascade-to", wutag.DefaultColor)
		if err != nil {
			return err
		}
		if err := txn.InsertImplication(wutag.Implication{
			TagID: t1.ID, ValueID: wutag.NoValueID,
			ImpliedTagID: t2.ID, ImpliedValueID: wutag.NoValueID,
		}); err != nil {
			return err
		}
		if err := txn.DeleteImplicationByTagID(t1.ID); err != nil {
			return err
		}
		closure, err := txn.ImplicationsFor([]wutag.FileTag{{TagID: t1.ID, ValueID: wutag.NoValueID}})
		if err != nil {
			return err
		}
		if containsTagID(closure, t2.ID) {
			t.Errorf("closure %v still contains t2 after DeleteImplicationByTagID", closure)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
