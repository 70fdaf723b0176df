package web

import (
	"errors"
	"net/http"

	"enocean-go-home/internal/automation"
)

func (s *Server) automationsUnavailable(w http.ResponseWriter) bool {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusServiceUnavailable, "automations not available")
		return true
	}
	return false
}

func (s *Server) handleAPIListAutomations(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	scripts, err := s.scriptMgr.List()
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if scripts == nil {
		scripts = []*automation.Script{}
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleAPIGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	s.writeJSON(w, http.StatusOK, script)
}

type saveAutomationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) saveScript(w http.ResponseWriter, script *automation.Script, status int) {
	saved, err := s.scriptMgr.Save(script)
	if errors.Is(err, automation.ErrInvalidScript) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("save script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if s.autoEngine != nil {
		if err := s.autoEngine.ReloadScript(saved.ID); err != nil {
			s.logger.Error("reload script after save", "id", saved.ID, "err", err)
		}
	}
	s.writeJSON(w, status, saved)
}

func (s *Server) handleAPICreateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	var req saveAutomationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.saveScript(w, &automation.Script{
		Meta: automation.ScriptMeta{
			Name:        req.Name,
			Description: req.Description,
			Enabled:     req.Enabled,
		},
		LuaCode: req.LuaCode,
	}, http.StatusCreated)
}

func (s *Server) handleAPIUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	existing, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}

	var req saveAutomationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	existing.Meta.Name = req.Name
	existing.Meta.Description = req.Description
	existing.Meta.Enabled = req.Enabled
	existing.LuaCode = req.LuaCode
	s.saveScript(w, existing, http.StatusOK)
}

func (s *Server) handleAPIDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	id := r.PathValue("id")
	if _, err := s.scriptMgr.Get(id); err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	if s.autoEngine != nil {
		s.autoEngine.StopScript(id)
	}
	if err := s.scriptMgr.Delete(id); err != nil {
		s.logger.Error("delete script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIRunAutomation(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeError(w, http.StatusServiceUnavailable, "automation engine not available")
		return
	}

	id := r.PathValue("id")
	if id == "_inline" {
		var req struct {
			LuaCode string `json:"lua_code"`
		}
		if !s.decodeBody(w, r, &req) {
			return
		}
		s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(req.LuaCode))
		return
	}

	s.writeJSON(w, http.StatusOK, s.autoEngine.RunScript(id))
}

func (s *Server) handleAPIToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automationsUnavailable(w) {
		return
	}

	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	script.Meta.Enabled = !script.Meta.Enabled
	s.saveScript(w, script, http.StatusOK)
}
