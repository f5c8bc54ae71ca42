package domain

import "testing"

func TestSessionStateBusy(t *testing.T) {
	busy := []SessionState{StatePaymentPending, StateVerifyingPayment, StateCreatingAccount, StateLinking}
	for _, s := range busy {
		if !s.Busy() {
			t.Fatalf("expected %q to be busy", s)
		}
	}
	idle := []SessionState{StatePlanSelection, StateForm, StateDone}
	for _, s := range idle {
		if s.Busy() {
			t.Fatalf("expected %q to not be busy", s)
		}
	}
}

func TestDrainNotices(t *testing.T) {
	var s Session
	s.PushNotice(NoticeSuccess, "first")
	s.PushNotice(NoticeError, "second")

	drained := s.DrainNotices()
	if len(drained) != 2 || drained[0].Message != "first" || drained[1].Message != "second" {
		t.Fatalf("expected both notices in order, got %+v", drained)
	}
	if len(s.DrainNotices()) != 0 {
		t.Fatal("expected the queue empty after drain")
	}
}

func TestApplyFormUpdateKeepsOtpForSameEmail(t *testing.T) {
	email := "jane@example.com"
	s := Session{Form: SignupForm{Email: email}, Otp: OtpState{Sent: true, Verified: true}}

	s.ApplyFormUpdate(FormUpdate{Email: &email})
	if !s.Otp.Verified {
		t.Fatal("expected otp kept when the email is unchanged")
	}

	other := "other@example.com"
	s.ApplyFormUpdate(FormUpdate{Email: &other})
	if s.Otp != (OtpState{}) {
		t.Fatalf("expected otp reset on email change, got %+v", s.Otp)
	}
	if s.Form.Email != other {
		t.Fatalf("expected email updated, got %q", s.Form.Email)
	}
}
