package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopad/internal/testutil"
)

// testClient is a line-protocol client over a real TCP connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	got  []string
}

func startServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.NewLogger()
	t.Cleanup(func() { logger.Sync() })

	config := DefaultConfig()
	config.Port = 0 // ephemeral port
	s := NewServer(config, logger)
	require.NoError(t, s.Listen())

	go func() {
		if err := s.Serve(); err != nil {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(func() { s.Close() })
	return s
}

func dial(t *testing.T, s *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	line = strings.TrimRight(line, "\n")
	c.got = append(c.got, line)
	return line
}

// drain reads n broadcast lines from every client before the test moves
// on, so requests from different connections reach the queue in a known
// order.
func drain(t *testing.T, n int, clients ...*testClient) {
	t.Helper()
	for _, c := range clients {
		for i := 0; i < n; i++ {
			c.readLine()
		}
	}
}

func TestServer_HandshakeAssignsIDs(t *testing.T) {
	s := startServer(t)

	c1 := dial(t, s)
	assert.Equal(t, "id&id=1&", c1.readLine())

	c2 := dial(t, s)
	assert.Equal(t, "id&id=2&", c2.readLine())
}

func TestServer_BroadcastReachesEveryClientInOrder(t *testing.T) {
	s := startServer(t)

	c1 := dial(t, s)
	require.Equal(t, "id&id=1&", c1.readLine())
	c2 := dial(t, s)
	require.Equal(t, "id&id=2&", c2.readLine())
	c1.got, c2.got = nil, nil

	// Alice logs in, bob tries to steal her name, then alice creates and
	// opens a document and chats.
	c1.send("LOGIN&userName=alice&")
	drain(t, 2, c1, c2)
	c2.send("LOGIN&userName=alice&")
	drain(t, 1, c1, c2)
	c1.send("NEWDOC&userName=alice&docName=paper&")
	drain(t, 1, c1, c2)
	c1.send("OPENDOC&userName=alice&docName=paper&")
	drain(t, 2, c1, c2)
	c1.send("CHAT&userName=alice&docName=paper&chatContent=hi&")
	drain(t, 1, c1, c2)

	// Every client saw every response, byte-identical, in the same order.
	require.Equal(t, c1.got, c2.got)

	assert.Equal(t, "loggedin&userName=alice&id=1&", c1.got[0])
	assert.Equal(t, "enddocinfo&userName=alice&", c1.got[1])
	assert.Equal(t, "notloggedin&id=2&", c1.got[2])
	assert.True(t, strings.HasPrefix(c1.got[3], "created&userName=alice&docName=paper&date="))
	assert.Equal(t, "update&docName=paper&collaborators=alice&colors=255,0,0 &", c1.got[4])
	assert.Equal(t,
		"opened&userName=alice&docName=paper&collaborators=alice&version=0&colors=255,0,0 &chatContent=&docContent=&",
		c1.got[5])
	assert.Equal(t, "chat&userName=alice&docName=paper&chatContent=hi&", c1.got[6])
}

func TestServer_ConcurrentEditsConverge(t *testing.T) {
	s := startServer(t)

	c1 := dial(t, s)
	require.Equal(t, "id&id=1&", c1.readLine())
	c2 := dial(t, s)
	require.Equal(t, "id&id=2&", c2.readLine())
	c1.got, c2.got = nil, nil

	c1.send("LOGIN&userName=alice&")
	drain(t, 2, c1, c2)
	c2.send("LOGIN&userName=bob&")
	drain(t, 2, c1, c2)
	c1.send("NEWDOC&userName=alice&docName=paper&")
	drain(t, 1, c1, c2)
	c1.send("OPENDOC&userName=alice&docName=paper&")
	drain(t, 2, c1, c2)
	c2.send("OPENDOC&userName=bob&docName=paper&")
	drain(t, 2, c1, c2)
	c1.send("CHANGE&type=insertion&userName=alice&docName=paper&position=0&length=3&version=0&change=abc&")
	drain(t, 1, c1, c2)

	// Both edit position 1 against the same version. The dispatcher
	// serializes them; the second broadcast carries the rebased position
	// so both clients converge.
	c1.send("CHANGE&type=insertion&userName=alice&docName=paper&position=1&length=1&version=1&change=X&")
	drain(t, 1, c1, c2)
	c2.send("CHANGE&type=insertion&userName=bob&docName=paper&position=1&length=1&version=1&change=Y&")
	drain(t, 1, c1, c2)

	require.Equal(t, c1.got, c2.got)

	n := len(c1.got)
	assert.Equal(t,
		"changed&type=insertion&userName=alice&docName=paper&position=1&length=1&version=2&color=255,0,0&change=X&",
		c1.got[n-2])
	assert.Equal(t,
		"changed&type=insertion&userName=bob&docName=paper&position=2&length=1&version=3&color=0,0,255&change=Y&",
		c1.got[n-1])

	doc, ok := s.Registry().Document("paper")
	require.True(t, ok)
	assert.Equal(t, "aXYbc", doc.Text())
}

func TestServer_DisconnectForcesLogout(t *testing.T) {
	s := startServer(t)

	c1 := dial(t, s)
	require.Equal(t, "id&id=1&", c1.readLine())

	c1.send("LOGIN&userName=alice&")
	drain(t, 2, c1)
	c1.send("NEWDOC&userName=alice&docName=paper&")
	drain(t, 1, c1)
	c1.send("OPENDOC&userName=alice&docName=paper&")
	drain(t, 2, c1)

	c1.conn.Close()

	require.Eventually(t, func() bool {
		return s.Registry().BoundConns() == 0
	}, 3*time.Second, 10*time.Millisecond)

	assert.Empty(t, s.Registry().OnlineUsers())
	_, ok := s.Registry().Color("alice")
	assert.False(t, ok, "connection loss forgets the color mapping")

	// Her name stays on the document's collaborator list.
	doc, ok := s.Registry().Document("paper")
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, doc.Collaborators())

	// The freed name can log in again from a new connection.
	c2 := dial(t, s)
	require.Equal(t, "id&id=2&", c2.readLine())
	c2.send("LOGIN&userName=alice&")
	assert.Equal(t, "loggedin&userName=alice&id=2&", c2.readLine())
}

func TestServer_MalformedLineKeepsConnectionOpen(t *testing.T) {
	s := startServer(t)

	c1 := dial(t, s)
	require.Equal(t, "id&id=1&", c1.readLine())

	c1.send("GARBAGE")
	assert.Equal(t, "Invalid request", c1.readLine())

	// The connection is still usable.
	c1.send("LOGIN&userName=alice&")
	assert.Equal(t, "loggedin&userName=alice&id=1&", c1.readLine())
	assert.Equal(t, "enddocinfo&userName=alice&", c1.readLine())
}
