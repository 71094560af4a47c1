package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/gossip/internal/types"
)

// searchUsers lists the accounts whose name contains the name query,
// leaving out the current user and their existing one-to-one partners.
func (s *GoChatApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	accounts, err := s.db.SearchAccounts(userId, strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		s.writeError(w, err)
		return
	}

	users := make([]types.User, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, toUser(a))
	}

	s.writeJson(w, http.StatusOK, users)
}
