package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calehh/dao-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T) *ChainIndexer {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection of an in-memory sqlite db is a separate database
	db.DB().SetMaxOpenConns(1)
	c, err := newChainIndexerWithDB(cmtlog.NewNopLogger(), db)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func okResult(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: abci.CodeTypeOK, Events: events}
}

func indexLifecycle(t *testing.T, c *ChainIndexer) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.handleBlock(ctx, 1, []*abci.ExecTxResult{
		okResult(types.EncodeEventRegistry(&types.EventRegistry{Registry: 1, Creator: "AA", Members: []string{"AA", "BB", "CC"}})),
	}))
	require.NoError(t, c.handleBlock(ctx, 2, []*abci.ExecTxResult{
		okResult(types.EncodeEventProposal(&types.EventProposal{Proposal: 1, Registry: 1, Proposer: "AA", Title: "mint", Options: 2, WindowStart: 10, WindowEnd: 110, Target: "token/mint"})),
		okResult(types.EncodeEventProposal(&types.EventProposal{Proposal: 2, Registry: 1, Proposer: "BB", Title: "noop", Options: 2, WindowStart: 10, WindowEnd: 110})),
	}))
	require.NoError(t, c.handleBlock(ctx, 3, []*abci.ExecTxResult{
		okResult(types.EncodeEventVote(&types.EventVote{Proposal: 1, Registry: 1, Voter: "AA", Option: 0, Tally: 1})),
		okResult(types.EncodeEventVote(&types.EventVote{Proposal: 1, Registry: 1, Voter: "BB", Option: 0, Tally: 2})),
		// failed txs are not indexed
		{Code: 8, Events: []abci.Event{types.EncodeEventVote(&types.EventVote{Proposal: 1, Registry: 1, Voter: "AA", Option: 1, Tally: 1})}},
		okResult(types.EncodeEventVote(&types.EventVote{Proposal: 1, Registry: 1, Voter: "CC", Option: 1, Tally: 1})),
		nil,
	}))
	require.NoError(t, c.handleBlock(ctx, 4, []*abci.ExecTxResult{
		okResult(types.EncodeEventFinalize(&types.EventFinalize{Proposal: 1, Winner: 0, Tallies: []uint64{2, 1}})),
	}))
	require.NoError(t, c.handleBlock(ctx, 5, []*abci.ExecTxResult{
		okResult(types.EncodeEventExecute(&types.EventExecute{Proposal: 1, Winner: 0, Target: "token/mint", Invoked: true, Executor: "CC"})),
	}))
}

func TestHandleBlock(t *testing.T) {
	c := newTestIndexer(t)
	indexLifecycle(t, c)

	p, err := c.getProposalById(1)
	require.NoError(t, err)
	require.Equal(t, uint64(types.ProposalStatusExecuted), p.Status)
	require.Equal(t, uint64(3), p.Votes)
	require.Equal(t, "2,1", p.Tallies)
	require.True(t, p.Invoked)
	require.Equal(t, uint64(2), p.NewHeight)
	require.Equal(t, uint64(4), p.FinalizeHeight)
	require.Equal(t, uint64(5), p.ExecuteHeight)

	votes, total, err := c.getVotesByProposal(1, 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(3), total)
	require.Equal(t, []string{"AA", "BB", "CC"}, []string{votes[0].Voter, votes[1].Voter, votes[2].Voter})

	_, total, err = c.getVotesByVoter("AA", 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)

	proposals, total, err := c.getProposalsByProposer("BB", 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
	require.Equal(t, uint64(types.ProposalStatusActive), proposals[0].Status)

	r, err := c.getRegistryById(1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), r.Size)
	require.Equal(t, "AA,BB,CC", r.Members)

	_, err = c.getRegistryById(2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// a restarted indexer resumes after the last indexed block
	resumed, err := newChainIndexerWithDB(cmtlog.NewNopLogger(), c.db)
	require.NoError(t, err)
	require.Equal(t, int64(6), resumed.Height)
}

func TestHandleBlockIgnoresMalformedEvents(t *testing.T) {
	c := newTestIndexer(t)
	bad := abci.Event{Type: types.EventVoteType, Attributes: []abci.EventAttribute{{Key: "option", Value: "x"}}}
	require.NoError(t, c.handleBlock(context.Background(), 1, []*abci.ExecTxResult{
		okResult(bad, abci.Event{Type: "transfer"}),
	}))
	_, total, err := c.getVotesByVoter("", 0, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	dat, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestIndexer(t)
	indexLifecycle(t, c)
	h := NewService("", c).Handler()

	tests := map[string]struct {
		path   string
		body   any
		status int
		check  func(t *testing.T, body []byte)
	}{
		"proposal by id": {
			path:   "/getProposals",
			body:   GetProposalsReq{ProposalId: 1},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetProposalResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Equal(t, uint64(1), res.Total)
				require.Equal(t, []uint64{2, 1}, res.Proposals[0].Tallies)
				require.Len(t, res.Proposals[0].Votes, 3)
			},
		},
		"proposals by registry": {
			path:   "/getProposals",
			body:   GetProposalsReq{Registry: 1, PageSize: 1},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetProposalResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Equal(t, uint64(2), res.Total)
				require.Len(t, res.Proposals, 1)
				require.Equal(t, uint64(2), res.Proposals[0].Proposal.Id)
				require.Empty(t, res.Proposals[0].Tallies)
			},
		},
		"negative page reads the first page": {
			path:   "/getProposals",
			body:   GetProposalsReq{Registry: 1, Page: -3, PageSize: 1},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetProposalResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Equal(t, uint64(2), res.Total)
				require.Len(t, res.Proposals, 1)
				require.Equal(t, uint64(2), res.Proposals[0].Proposal.Id)
			},
		},
		"missing proposal": {
			path:   "/getProposals",
			body:   GetProposalsReq{ProposalId: 9},
			status: http.StatusNotFound,
		},
		"votes need a filter": {
			path:   "/getVotes",
			body:   GetVotesReq{},
			status: http.StatusBadRequest,
		},
		"votes by voter": {
			path:   "/getVotes",
			body:   GetVotesReq{Voter: "CC"},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetVotesResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Equal(t, uint64(1), res.Total)
				require.Equal(t, uint32(1), res.Votes[0].Option)
			},
		},
		"registries": {
			path:   "/getRegistries",
			body:   GetRegistriesReq{},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetRegistriesResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Equal(t, uint64(1), res.Total)
				require.Equal(t, "AA", res.Registries[0].Creator)
			},
		},
		"registries negative page": {
			path:   "/getRegistries",
			body:   GetRegistriesReq{Page: -1},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetRegistriesResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Len(t, res.Registries, 1)
			},
		},
		"votes negative page": {
			path:   "/getVotes",
			body:   GetVotesReq{Voter: "CC", Page: -2},
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var res GetVotesResponse
				require.NoError(t, json.Unmarshal(body, &res))
				require.Len(t, res.Votes, 1)
			},
		},
		"bad json": {
			path:   "/getRegistries",
			body:   "not an object",
			status: http.StatusBadRequest,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := post(t, h, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
		})
	}
}

func TestPage(t *testing.T) {
	require.Equal(t, 0, page(-5))
	require.Equal(t, 0, page(0))
	require.Equal(t, 4, page(4))
	require.Equal(t, defaultPageSize, pageSize(-1))
	require.Equal(t, maxPageSize, pageSize(maxPageSize+1))
}

func TestReconnectLogsStopError(t *testing.T) {
	c := newTestIndexer(t)
	var buf bytes.Buffer
	c.logger = cmtlog.NewTMLogger(cmtlog.NewSyncWriter(&buf))
	c.Url = "http://127.0.0.1:1"
	old, err := comethttp.New(c.Url, "/websocket")
	require.NoError(t, err)
	c.cli = old

	// the client was never started so Stop fails
	c.reconnect()
	require.Contains(t, buf.String(), "stop client fail")
	require.NotSame(t, old, c.cli)
}
