package intent

import "testing"

func TestClassifySingleIntent(t *testing.T) {
	res := Classify("Hello there")
	if res.Primary != Greeting {
		t.Fatalf("expected greeting, got %s", res.Primary)
	}
	if res.Escalate {
		t.Fatalf("greeting should not escalate")
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	res := Classify("WHAT ARE YOUR HOURS")
	if res.Primary != HoursInquiry {
		t.Fatalf("expected hours_inquiry, got %s", res.Primary)
	}
}

func TestClassifyNoMatchIsGeneralInquiry(t *testing.T) {
	res := Classify("zzz qqq")
	if res.Primary != GeneralInquiry {
		t.Fatalf("expected general_inquiry, got %s", res.Primary)
	}
	if len(res.All) != 1 || res.All[0] != GeneralInquiry {
		t.Fatalf("expected only general_inquiry, got %v", res.All)
	}
	if res.Escalate {
		t.Fatalf("general_inquiry should not escalate")
	}
}

func TestClassifyMultipleIntentsKeepScanOrder(t *testing.T) {
	res := Classify("hi, when do you open and where are you located")
	want := []Intent{Greeting, HoursInquiry, LocationInquiry}
	if len(res.All) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.All)
	}
	for i, in := range want {
		if res.All[i] != in {
			t.Fatalf("expected %v at %d, got %v", in, i, res.All[i])
		}
	}
	if res.Primary != Greeting {
		t.Fatalf("primary should be first detected, got %s", res.Primary)
	}
}

func TestClassifyDeliveryKeywordPrefersOrderRequest(t *testing.T) {
	// "delivery" appears in both the order and delivery tables; the order
	// table is scanned first so it owns the primary slot.
	res := Classify("do you do delivery")
	if res.Primary != OrderRequest {
		t.Fatalf("expected order_request primary, got %s", res.Primary)
	}
	foundDelivery := false
	for _, in := range res.All {
		if in == DeliveryInquiry {
			foundDelivery = true
		}
	}
	if !foundDelivery {
		t.Fatalf("expected delivery_inquiry also detected, got %v", res.All)
	}
	if !res.Escalate {
		t.Fatalf("order_request should escalate")
	}
}

func TestClassifyDeduplicatesIntents(t *testing.T) {
	res := Classify("hello hi hey")
	if len(res.All) != 1 || res.All[0] != Greeting {
		t.Fatalf("expected single greeting, got %v", res.All)
	}
}

func TestEscalationSet(t *testing.T) {
	escalate := []Intent{OrderRequest, ReservationRequest, Complaint, ContactStaff}
	for _, in := range escalate {
		if !RequiresEscalation(in) {
			t.Fatalf("%s should escalate", in)
		}
	}
	stay := []Intent{Greeting, HoursInquiry, LocationInquiry, MenuInquiry, DeliveryInquiry, Closing, GeneralInquiry}
	for _, in := range stay {
		if RequiresEscalation(in) {
			t.Fatalf("%s should not escalate", in)
		}
	}
}

func TestClassifyContactStaffEscalates(t *testing.T) {
	res := Classify("can I speak to a manager")
	if res.Primary != ContactStaff {
		t.Fatalf("expected contact_staff, got %s", res.Primary)
	}
	if !res.Escalate {
		t.Fatalf("contact_staff should escalate")
	}
}

func TestClassifyComplaint(t *testing.T) {
	res := Classify("my food was terrible")
	foundComplaint := false
	for _, in := range res.All {
		if in == Complaint {
			foundComplaint = true
		}
	}
	if !foundComplaint {
		t.Fatalf("expected complaint detected, got %v", res.All)
	}
	if !res.Escalate {
		t.Fatalf("complaint should escalate")
	}
}
