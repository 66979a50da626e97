// issue_token emite un JWT firmado con JWT_SECRET para operar la API en entornos locales.
//
// Uso: go run ./cmd/issue_token --user <uuid> --hub HUB-BOG --role bodeguero [--minutes 480]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/jhoicas/tagtrack-api/pkg/config"
	"github.com/jhoicas/tagtrack-api/pkg/jwt"
)

func main() {
	userID := pflag.StringP("user", "u", "", "ID del actor (obligatorio)")
	hubID := pflag.String("hub", "", "hub por defecto del actor")
	role := pflag.StringP("role", "r", jwt.RoleBodeguero, "admin | bodeguero | calidad")
	minutes := pflag.IntP("minutes", "m", 0, "vigencia en minutos (0 = JWT_EXPIRATION_MINUTES)")
	pflag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "--user es obligatorio")
		pflag.Usage()
		os.Exit(2)
	}
	switch *role {
	case jwt.RoleAdmin, jwt.RoleBodeguero, jwt.RoleCalidad:
	default:
		fmt.Fprintf(os.Stderr, "rol desconocido %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	exp := cfg.JWT.Expiration
	if *minutes > 0 {
		exp = *minutes
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, *userID, *hubID, *role, cfg.JWT.Issuer, exp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
