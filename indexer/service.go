package indexer

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getRegistries", s.handleGetRegistries)
	return s
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func pageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

func page(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

type ProposalInfo struct {
	Proposal Proposal `json:"proposal"`
	Tallies  []uint64 `json:"tallies"`
	Votes    []Vote   `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId uint64 `json:"proposalId"`
	Registry   uint64 `json:"registry"`
	Proposer   string `json:"proposer"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) proposalInfo(p Proposal) (ProposalInfo, error) {
	votes, _, err := s.indexer.getVotesByProposal(p.Id, 0, maxPageSize)
	if err != nil {
		return ProposalInfo{}, err
	}
	info := ProposalInfo{Proposal: p, Votes: votes}
	if p.Tallies != "" {
		for _, t := range strings.Split(p.Tallies, ",") {
			v, err := strconv.ParseUint(t, 10, 64)
			if err != nil {
				return ProposalInfo{}, err
			}
			info.Tallies = append(info.Tallies, v)
		}
	}
	if info.Votes == nil {
		info.Votes = make([]Vote, 0)
	}
	return info, nil
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != 0 {
		p, err := s.indexer.getProposalById(requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		info, err := s.proposalInfo(p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	var (
		proposals []Proposal
		total     uint64
		err       error
	)
	size := pageSize(requestData.PageSize)
	switch {
	case requestData.Registry != 0:
		proposals, total, err = s.indexer.getProposalsByRegistry(requestData.Registry, page(requestData.Page), size)
	case requestData.Proposer != "":
		proposals, total, err = s.indexer.getProposalsByProposer(requestData.Proposer, page(requestData.Page), size)
	default:
		proposals, total, err = s.indexer.getProposals(page(requestData.Page), size)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, p := range proposals {
		info, err := s.proposalInfo(p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
	}
	c.JSON(http.StatusOK, response)
}

type GetVotesReq struct {
	ProposalId uint64 `json:"proposalId"`
	Voter      string `json:"voter"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []Vote `json:"votes"`
	Total uint64 `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var (
		votes []Vote
		total uint64
		err   error
	)
	size := pageSize(requestData.PageSize)
	switch {
	case requestData.ProposalId != 0:
		votes, total, err = s.indexer.getVotesByProposal(requestData.ProposalId, page(requestData.Page), size)
	case requestData.Voter != "":
		votes, total, err = s.indexer.getVotesByVoter(requestData.Voter, page(requestData.Page), size)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if votes == nil {
		votes = make([]Vote, 0)
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

type GetRegistriesReq struct {
	RegistryId uint64 `json:"registryId"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetRegistriesResponse struct {
	Registries []Registry `json:"registries"`
	Total      uint64     `json:"total"`
}

func (s *Service) handleGetRegistries(c *gin.Context) {
	var requestData GetRegistriesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	response := GetRegistriesResponse{Registries: make([]Registry, 0)}
	if requestData.RegistryId != 0 {
		r, err := s.indexer.getRegistryById(requestData.RegistryId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		response.Registries = append(response.Registries, r)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}
	registries, total, err := s.indexer.getRegistries(page(requestData.Page), pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Registries = append(response.Registries, registries...)
	response.Total = total
	c.JSON(http.StatusOK, response)
}
