package telnet

import "testing"

func TestDefaultSLCTab_HasVariableInterrupt(t *testing.T) {
	tab := DefaultSLCTab()
	ip := tab.get(SLC_IP)
	if ip.Level() != SLC_VARIABLE {
		t.Fatalf("expected SLC_IP to be SLC_VARIABLE, got level %d", ip.Level())
	}
	if ip.Value != 0x03 {
		t.Fatalf("expected SLC_IP value 0x03, got %#x", ip.Value)
	}
}

func TestSLCTab_GetUnknownFunctionIsNoSupport(t *testing.T) {
	tab := DefaultSLCTab()
	d := tab.get(99)
	if !d.NoSupport() {
		t.Fatalf("expected unknown SLC function to report NoSupport")
	}
	if d.Value != posixVDisable {
		t.Fatalf("expected unknown SLC function value to be posixVDisable")
	}
}

func TestSLCChange_PeerNoSupportIsAdopted(t *testing.T) {
	mine := SLCDefinition{Flag: SLC_VARIABLE, Value: 0x03}
	theirs := SLCDefinition{Flag: SLC_NOSUPPORT, Value: posixVDisable}
	result, ack := slcChange(mine, theirs)
	if !result.NoSupport() || ack {
		t.Fatalf("expected adoption of NOSUPPORT without ack, got %+v ack=%v", result, ack)
	}
}

func TestSLCChange_IdenticalProposalNeedsNoAck(t *testing.T) {
	mine := SLCDefinition{Flag: SLC_VARIABLE, Value: 0x03}
	result, ack := slcChange(mine, mine)
	if ack {
		t.Fatalf("expected no ack for identical proposal")
	}
	if result != mine {
		t.Fatalf("expected unchanged entry, got %+v", result)
	}
}

func TestSLCChange_CantChangeIsEchoedBack(t *testing.T) {
	mine := SLCDefinition{Flag: SLC_VARIABLE, Value: 0x03}
	theirs := SLCDefinition{Flag: SLC_CANTCHANGE, Value: 0x7f}
	result, ack := slcChange(mine, theirs)
	if result != mine || !ack {
		t.Fatalf("expected our entry echoed back with ack, got %+v ack=%v", result, ack)
	}
}

func TestSLCChange_NewValueIsAcceptedAndAcked(t *testing.T) {
	mine := SLCDefinition{Flag: SLC_VARIABLE, Value: 0x03}
	theirs := SLCDefinition{Flag: SLC_VARIABLE, Value: 0x1b}
	result, ack := slcChange(mine, theirs)
	if !ack {
		t.Fatalf("expected ack for changed value")
	}
	if result.Value != 0x1b {
		t.Fatalf("expected accepted value 0x1b, got %#x", result.Value)
	}
}
