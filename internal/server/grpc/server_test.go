package grpc

import (
	"context"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/members/internal/common"
	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/config"
	"github.com/dmitrijs2005/members/internal/server/dbtest"
	"github.com/dmitrijs2005/members/internal/server/members"
	"github.com/dmitrijs2005/members/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/members/internal/server/services"
	"github.com/dmitrijs2005/members/internal/server/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type captureMailer struct {
	mu   sync.Mutex
	body string
}

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	return nil
}

type staticVerifier string

func (v staticVerifier) Verify(context.Context, url.Values) (string, error) {
	return string(v), nil
}

const testSecret = "secret"

func newTestServer(t *testing.T, m *captureMailer) *GRPCServer {
	t.Helper()
	cfg := &config.Config{SecretKey: testSecret, AccessTokenValidityDuration: time.Hour, BaseURL: "https://league.example"}
	db := members.NewDatabase(dbtest.Open(t), repomanager.NewSQLRepositoryManager(dbx.SQLite), members.Options{})
	ls := services.NewLoginService(db, m, staticVerifier("76561198000000001"), throttle.NewMemoryLimiter(5, time.Minute), logging.Nop(), cfg)

	srv, err := NewGRPCServer("127.0.0.1:0", logging.Nop(), ls, testSecret)
	require.NoError(t, err)
	return srv
}

// dial serves srv on an in-memory listener and returns a client for it.
func dial(t *testing.T, srv *GRPCServer) *MembersClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return NewMembersClient(conn)
}

func TestPing_EchoesRequestID(t *testing.T) {
	client := dial(t, newTestServer(t, &captureMailer{}))

	var header metadata.MD
	resp, err := client.Ping(context.Background(), grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.GetValue())
	require.Len(t, header.Get(common.RequestIDHeaderName), 1)

	const id = "0b8f6f2e-3d4c-4b7a-9a65-0c1f5b0e4a11"
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.RequestIDHeaderName, id)
	_, err = client.Ping(ctx, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, header.Get(common.RequestIDHeaderName))
}

func TestRequestIDReachesLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := newTestServer(t, &captureMailer{})
	srv.logger = logging.NewZapLogger(zap.New(core))
	client := dial(t, srv)

	const id = "3c1e1f0a-8a55-4f0e-9d0b-5f7c2d9e6b21"
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.RequestIDHeaderName, id)
	_, err := client.Ping(ctx)
	require.NoError(t, err)

	rpc := logs.FilterMessage("rpc").All()
	require.Len(t, rpc, 1)
	fields := rpc[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, methodPing, fields["method"])
}

func TestEmailLoginOverGRPC(t *testing.T) {
	mailer := &captureMailer{}
	client := dial(t, newTestServer(t, mailer))
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.UserAgentHeaderName, "grpc-test")

	anon, err := client.Whoami(ctx)
	require.NoError(t, err)
	assert.True(t, anon.GetFields()["anonymous"].GetBoolValue())

	req, err := structpb.NewStruct(map[string]any{"email": "driver@example.com"})
	require.NoError(t, err)
	require.NoError(t, client.RequestEmailLogin(ctx, req))

	err = client.RequestEmailLogin(ctx, req)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	m := regexp.MustCompile(`/login/email/verify/([0-9]+)/([a-f0-9]+)`).FindStringSubmatch(mailer.body)
	require.NotNil(t, m)

	verify, err := structpb.NewStruct(map[string]any{"account_id": m[1], "token": m[2]})
	require.NoError(t, err)
	_, err = client.VerifyEmailLogin(ctx, verify)
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "account_id must be a number")

	var header metadata.MD
	verify.Fields["account_id"] = structpb.NewNumberValue(mustFloat(t, m[1]))
	session, err := client.VerifyEmailLogin(ctx, verify, grpc.Header(&header))
	require.NoError(t, err)

	setCookie := session.GetFields()["set_cookie"].GetStringValue()
	assert.Equal(t, []string{setCookie}, header.Get("set-cookie"))
	userID := session.GetFields()["user_id"].GetNumberValue()

	withToken := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, session.GetFields()["access_token"].GetStringValue())
	me, err := client.Whoami(withToken)
	require.NoError(t, err)
	assert.Equal(t, userID, me.GetFields()["id"].GetNumberValue())
	assert.False(t, me.GetFields()["anonymous"].GetBoolValue())

	withCookie := metadata.AppendToOutgoingContext(ctx, common.CookieHeaderName, strings.Split(setCookie, ";")[0])
	me, err = client.Whoami(withCookie)
	require.NoError(t, err)
	assert.Equal(t, userID, me.GetFields()["id"].GetNumberValue())

	out, err := client.Logout(withCookie)
	require.NoError(t, err)
	assert.Equal(t, members.LogoutCookie, out.GetValue())

	me, err = client.Whoami(withCookie)
	require.NoError(t, err)
	assert.True(t, me.GetFields()["anonymous"].GetBoolValue())

	_, err = client.Whoami(metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, "garbage"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSteamLoginOverGRPC(t *testing.T) {
	client := dial(t, newTestServer(t, &captureMailer{}))

	req, err := structpb.NewStruct(map[string]any{"openid.mode": "id_res"})
	require.NoError(t, err)

	first, err := client.SteamLogin(context.Background(), req)
	require.NoError(t, err)
	second, err := client.SteamLogin(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.GetFields()["user_id"].GetNumberValue(), second.GetFields()["user_id"].GetNumberValue())
}

func TestRequestEmailLogin_Validation(t *testing.T) {
	client := dial(t, newTestServer(t, &captureMailer{}))

	err := client.RequestEmailLogin(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	bad, _ := structpb.NewStruct(map[string]any{"email": "nope"})
	err = client.RequestEmailLogin(context.Background(), bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrTokenExpired, codes.Unauthenticated},
		{common.ErrThrottled, codes.ResourceExhausted},
		{common.ErrInvalidEmail, codes.InvalidArgument},
		{common.ErrConflict, codes.AlreadyExists},
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrCryptoFailure, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &captureMailer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &captureMailer{})
	srv.address = "127.0.0.1:99999"

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return f
}
