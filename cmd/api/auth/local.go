package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	app "github.com/top-ti/inventory-go/cmd/api/app"
)

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues an HS256 token for local-mode deployments.
func Login(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Cfg.AuthMode != "local" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login disabled"})
			return
		}
		var in loginReq
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		var id, hash, email, displayName, role string
		err := a.DB.QueryRow(ctx,
			"select id::text, coalesce(password_hash,''), coalesce(email,''), coalesce(display_name,''), coalesce(role,'operator') from users where lower(username)=lower($1)",
			in.Username).Scan(&id, &hash, &email, &displayName, &role)
		if err != nil || id == "" || hash == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		claims := jwt.MapClaims{
			"sub":   id,
			"name":  displayName,
			"email": email,
			"roles": []string{role},
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(24 * time.Hour).Unix(),
			"mode":  "local",
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, err := token.SignedString([]byte(a.Cfg.AuthLocalSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie("auth", s, 86400, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"token": s})
	}
}

// Logout clears the auth cookie.
func Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("auth", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SeedLocalAdmin creates the admin account on first boot of a local-mode
// deployment.
func SeedLocalAdmin(ctx context.Context, db app.DB, password string) error {
	var exists bool
	if err := db.QueryRow(ctx, "select exists(select 1 from users where lower(username)='admin')").Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx,
		"insert into users (id, username, email, display_name, password_hash, role) values (gen_random_uuid(), 'admin', 'admin@example.com', 'Admin', $1, 'admin')",
		string(hash)); err != nil {
		return err
	}
	log.Info().Str("username", "admin").Msg("seeded local admin user (dev)")
	return nil
}
