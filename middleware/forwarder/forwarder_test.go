package forwarder

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Forward_AlwaysReturnsResponse(t *testing.T) {
	f := New("8.8.8.8:53", 2*time.Second)

	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA)

	resp := f.Forward(context.Background(), req)
	require.NotNil(t, resp)
}

func Test_Forward_UnreachableUpstream_IsServFail(t *testing.T) {
	f := New("127.0.0.1:1", 50*time.Millisecond)

	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA)

	resp := f.Forward(context.Background(), req)
	require.NotNil(t, resp)
	assert.Equal(t, dns.RcodeServerFailure, resp.Rcode)
}

func Test_New_DefaultsTimeout(t *testing.T) {
	f := New("8.8.8.8:53", 0)
	assert.Equal(t, 5*time.Second, f.timeout)
}
