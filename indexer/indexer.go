package indexer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/calehh/dao-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// ChainIndexer follows committed blocks over RPC and mirrors the dao events
// into sqlite for the read API.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           *comethttp.HTTP
	eventHandlers map[string]eventHandler
}

type eventHandler func(ctx context.Context, event abci.Event, height int64) error

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	c, err := newChainIndexerWithDB(logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Url = chainUrl
	c.cli = cli
	return c, nil
}

func newChainIndexerWithDB(logger cmtlog.Logger, db *gorm.DB) (*ChainIndexer, error) {
	if err := db.AutoMigrate(&Height{}, &Registry{}, &Proposal{}, &Vote{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c := &ChainIndexer{
		logger: logger.With("module", "indexer"),
		Height: int64(h.Height + 1),
		db:     db,
	}
	c.eventHandlers = c.handlers()
	return c, nil
}

func (c *ChainIndexer) handlers() map[string]eventHandler {
	return map[string]eventHandler{
		types.EventRegistryType: c.handleEventRegistry,
		types.EventProposalType: c.handleEventProposal,
		types.EventVoteType:     c.handleEventVote,
		types.EventFinalizeType: c.handleEventFinalize,
		types.EventExecuteType:  c.handleEventExecute,
	}
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

func (c *ChainIndexer) handleEvent(ctx context.Context, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(ctx, event, height)
	}
	return nil
}

func (c *ChainIndexer) handleEventRegistry(ctx context.Context, event abci.Event, height int64) error {
	ev := types.DecodeEventRegistry(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	r := Registry{
		Id:      ev.Registry,
		Creator: ev.Creator,
		Members: strings.Join(ev.Members, ","),
		Size:    uint64(len(ev.Members)),
		Height:  uint64(height),
	}
	return c.db.Save(&r).Error
}

func (c *ChainIndexer) handleEventProposal(ctx context.Context, event abci.Event, height int64) error {
	ev := types.DecodeEventProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	p := Proposal{
		Id:          ev.Proposal,
		Registry:    ev.Registry,
		Proposer:    ev.Proposer,
		Title:       ev.Title,
		Options:     ev.Options,
		WindowStart: ev.WindowStart,
		WindowEnd:   ev.WindowEnd,
		Target:      ev.Target,
		Status:      uint64(types.ProposalStatusActive),
		NewHeight:   uint64(height),
	}
	return c.db.Save(&p).Error
}

func (c *ChainIndexer) handleEventVote(ctx context.Context, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	v := Vote{
		Proposal: ev.Proposal,
		Registry: ev.Registry,
		Voter:    ev.Voter,
		Option:   ev.Option,
		Tally:    ev.Tally,
		Height:   uint64(height),
	}
	if err := c.db.Create(&v).Error; err != nil {
		return err
	}
	return c.db.Model(&Proposal{}).Where("id = ?", ev.Proposal).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error
}

func (c *ChainIndexer) handleEventFinalize(ctx context.Context, event abci.Event, height int64) error {
	ev := types.DecodeEventFinalize(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	tallies := make([]string, len(ev.Tallies))
	for i, t := range ev.Tallies {
		tallies[i] = strconv.FormatUint(t, 10)
	}
	return c.db.Model(&Proposal{}).Where("id = ?", ev.Proposal).Updates(map[string]interface{}{
		"status":          uint64(types.ProposalStatusFinalized),
		"winner":          ev.Winner,
		"tallies":         strings.Join(tallies, ","),
		"finalize_height": uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventExecute(ctx context.Context, event abci.Event, height int64) error {
	ev := types.DecodeEventExecute(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	return c.db.Model(&Proposal{}).Where("id = ?", ev.Proposal).Updates(map[string]interface{}{
		"status":         uint64(types.ProposalStatusExecuted),
		"invoked":        ev.Invoked,
		"execute_height": uint64(height),
	}).Error
}

// handleBlock indexes the events of the successful txs of one block and
// records it as the last indexed height.
func (c *ChainIndexer) handleBlock(ctx context.Context, height int64, results []*abci.ExecTxResult) error {
	tx := c.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	scoped := &ChainIndexer{logger: c.logger, db: tx}
	scoped.eventHandlers = scoped.handlers()
	for _, res := range results {
		if res == nil || res.Code != abci.CodeTypeOK {
			continue
		}
		for _, event := range res.Events {
			if err := scoped.handleEvent(ctx, event, height); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err := tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (c *ChainIndexer) reconnect() {
	if c.cli != nil && c.cli.IsRunning() {
		return
	}
	if c.cli != nil {
		if err := c.cli.Stop(); err != nil {
			c.logger.Error("stop client fail", "err", err)
		}
	}
	cli, err := comethttp.New(c.Url, "/websocket")
	if err != nil {
		c.logger.Error("reconnect fail", "err", err)
		return
	}
	c.cli = cli
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := c.cli.Status(ctx)
			if err != nil {
				c.logger.Error("get status fail", "err", err)
				c.reconnect()
				continue
			}
			for b.SyncInfo.LatestBlockHeight >= c.Height {
				if ctx.Err() != nil {
					return
				}
				c.logger.Debug("indexer syncing", "height", c.Height)
				height := c.Height
				res, err := c.cli.BlockResults(ctx, &height)
				if err != nil {
					c.logger.Error("get block results fail", "height", height, "err", err)
					c.reconnect()
					break
				}
				if err = c.handleBlock(ctx, height, res.TxsResults); err != nil {
					c.logger.Error("index block fail", "height", height, "err", err)
					break
				}
				c.Height++
			}
		}
	}
}

func (c *ChainIndexer) getProposals(page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	err := c.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getProposalsByRegistry(registry uint64, page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	err := c.db.Where("registry = ?", registry).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Where("registry = ?", registry).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalsByProposer(proposer string, page int, pageSize int) ([]Proposal, uint64, error) {
	var proposals []Proposal
	err := c.db.Where("proposer = ?", proposer).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Proposal{}).Where("proposer = ?", proposer).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getVotesByProposal(proposal uint64, page int, pageSize int) ([]Vote, uint64, error) {
	var votes []Vote
	err := c.db.Where("proposal = ?", proposal).Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Vote{}).Where("proposal = ?", proposal).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getVotesByVoter(voter string, page int, pageSize int) ([]Vote, uint64, error) {
	var votes []Vote
	err := c.db.Where("voter = ?", voter).Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Vote{}).Where("voter = ?", voter).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getRegistries(page int, pageSize int) ([]Registry, uint64, error) {
	var registries []Registry
	err := c.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&registries).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	err = c.db.Model(&Registry{}).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	return registries, total, nil
}

func (c *ChainIndexer) getRegistryById(id uint64) (Registry, error) {
	var r Registry
	err := c.db.Where("id = ?", id).First(&r).Error
	if err != nil {
		return Registry{}, err
	}
	return r, nil
}
