package opaque

import (
	"bytes"
	"testing"
	"time"

	"github.com/cloudflare/circl/oprf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

var testKSF = KSFParams{Time: 1, Memory: 64, Threads: 1}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	key, err := GenerateServerKey()
	require.NoError(t, err)
	return NewServer(key, testKSF)
}

func TestRegisterAndLogin(t *testing.T) {
	server := newTestServer(t)

	record, err := Register(server, "alice", "abc123!")
	require.NoError(t, err)

	t.Run("Success_SamePassword", func(t *testing.T) {
		assert.NoError(t, Login(server, "alice", "abc123!", record))
	})

	t.Run("Error_WrongPassword", func(t *testing.T) {
		err := Login(server, "alice", "wrongpass", record)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("Error_UnknownUserLooksTheSame", func(t *testing.T) {
		err := Login(server, "bob", "abc123!", nil)
		assert.Equal(t, ErrAuthenticationFailed, err)
		assert.Equal(t, Login(server, "alice", "wrongpass", record), err)
	})

	t.Run("Error_RecordOfAnotherCredential", func(t *testing.T) {
		err := Login(server, "bob", "abc123!", record)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("Error_OtherServerKey", func(t *testing.T) {
		other := newTestServer(t)
		err := Login(other, "alice", "abc123!", record)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestReRegistrationReplacesPassword(t *testing.T) {
	server := newTestServer(t)

	first, err := Register(server, "alice", "first-password")
	require.NoError(t, err)
	second, err := Register(server, "alice", "second-password")
	require.NoError(t, err)

	assert.NoError(t, Login(server, "alice", "second-password", second))
	assert.ErrorIs(t, Login(server, "alice", "first-password", second), ErrAuthenticationFailed)
	assert.NoError(t, Login(server, "alice", "first-password", first))
}

func TestLoginMessagesRoundTrip(t *testing.T) {
	server := newTestServer(t)
	record, err := Register(server, "alice", "abc123!")
	require.NoError(t, err)

	recordBytes, err := record.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, recordBytes, RecordLength)

	var stored RegistrationRecord
	require.NoError(t, stored.UnmarshalBinary(recordBytes))

	client := NewClient(server.KSF())
	ke1, err := client.LoginStart([]byte("abc123!"))
	require.NoError(t, err)
	ke1Bytes, err := ke1.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, ke1Bytes, KE1Length)

	var receivedKE1 KE1
	require.NoError(t, receivedKE1.UnmarshalBinary(ke1Bytes))

	ke2, state, err := server.LoginInit(&stored, "alice", &receivedKE1)
	require.NoError(t, err)
	ke2Bytes, err := ke2.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, ke2Bytes, KE2Length)

	sealed, err := server.SealLoginState(state, "alice", time.Now())
	require.NoError(t, err)

	var receivedKE2 KE2
	require.NoError(t, receivedKE2.UnmarshalBinary(ke2Bytes))
	ke3, clientKey, err := client.LoginFinish(&receivedKE2, "alice")
	require.NoError(t, err)

	opened, err := server.OpenLoginState(sealed, "alice", time.Now())
	require.NoError(t, err)
	serverKey, err := server.LoginFinish(opened, ke3)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(clientKey, serverKey))
}

func TestServerLoginFinish_TamperedKE3(t *testing.T) {
	server := newTestServer(t)
	record, err := Register(server, "alice", "abc123!")
	require.NoError(t, err)

	client := NewClient(server.KSF())
	ke1, err := client.LoginStart([]byte("abc123!"))
	require.NoError(t, err)
	ke2, state, err := server.LoginInit(record, "alice", ke1)
	require.NoError(t, err)
	ke3, _, err := client.LoginFinish(ke2, "alice")
	require.NoError(t, err)

	ke3.ClientMAC[0] ^= 0xff
	_, err = server.LoginFinish(state, ke3)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestClientLoginFinish_TamperedServerMAC(t *testing.T) {
	server := newTestServer(t)
	record, err := Register(server, "alice", "abc123!")
	require.NoError(t, err)

	client := NewClient(server.KSF())
	ke1, err := client.LoginStart([]byte("abc123!"))
	require.NoError(t, err)
	ke2, _, err := server.LoginInit(record, "alice", ke1)
	require.NoError(t, err)

	ke2.ServerMAC[0] ^= 0xff
	_, _, err = client.LoginFinish(ke2, "alice")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestLoginState(t *testing.T) {
	server := newTestServer(t)
	state := &ServerLoginState{
		ExpectedClientMAC: bytes.Repeat([]byte{1}, hashLength),
		SessionKey:        bytes.Repeat([]byte{2}, hashLength),
	}
	now := time.Now()

	sealed, err := server.SealLoginState(state, "alice", now)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		opened, err := server.OpenLoginState(sealed, "alice", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, state, opened)
	})

	t.Run("Error_Expired", func(t *testing.T) {
		_, err := server.OpenLoginState(sealed, "alice", now.Add(LoginStateTTL+time.Second))
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("Error_OtherCredential", func(t *testing.T) {
		_, err := server.OpenLoginState(sealed, "bob", now)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("Error_Truncated", func(t *testing.T) {
		_, err := server.OpenLoginState(sealed[:10], "alice", now)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestServerKeyMarshal(t *testing.T) {
	key, err := GenerateServerKey()
	require.NoError(t, err)

	data, err := key.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, ServerKeyLength)

	var decoded ServerKey
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, key.PublicKey(), decoded.PublicKey())

	record, err := Register(NewServer(key, testKSF), "alice", "abc123!")
	require.NoError(t, err)
	assert.NoError(t, Login(NewServer(&decoded, testKSF), "alice", "abc123!", record))

	assert.ErrorIs(t, decoded.UnmarshalBinary(data[:10]), ErrInvalidServerKey)
	assert.ErrorIs(t, decoded.UnmarshalBinary(make([]byte, ServerKeyLength)), ErrInvalidServerKey)
}

func TestInvalidMessages(t *testing.T) {
	server := newTestServer(t)

	_, err := server.RegistrationResponse(&RegistrationRequest{BlindedMessage: make([]byte, elementLength)}, "alice")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	var ke1 KE1
	assert.ErrorIs(t, ke1.UnmarshalBinary([]byte{1, 2, 3}), ErrInvalidMessage)

	var record RegistrationRecord
	assert.ErrorIs(t, record.UnmarshalBinary(make([]byte, RecordLength)), ErrInvalidMessage)
}

func TestOPRFMatchesFullEvaluate(t *testing.T) {
	server := newTestServer(t)
	password := []byte("abc123!")

	finData, blinded, err := blind(password)
	require.NoError(t, err)
	evaluated, err := evaluate(server.oprfKey("alice"), blinded)
	require.NoError(t, err)
	output, err := finalize(finData, evaluated)
	require.NoError(t, err)

	expected, err := oprf.NewServer(oprfSuite, server.oprfKey("alice")).FullEvaluate(password)
	require.NoError(t, err)
	assert.Equal(t, expected, output)

	other, err := oprf.NewServer(oprfSuite, server.oprfKey("bob")).FullEvaluate(password)
	require.NoError(t, err)
	assert.NotEqual(t, other, output)
}

func TestEvaluateRejectsIdentityElement(t *testing.T) {
	server := newTestServer(t)

	_, err := evaluate(server.oprfKey("alice"), make([]byte, elementLength))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = evaluate(server.oprfKey("alice"), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
