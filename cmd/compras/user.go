package main

import (
	"fmt"

	"compras/db"
	"compras/internal/handlers"
	"compras/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// userCmd заводит первого администратора: через API это может сделать только ADMIN.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	var (
		u          models.User
		role       string
		department string
		supplier   string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Role = models.Role(role)
			if department != "" {
				u.DepartmentID = &department
			}
			if supplier != "" {
				u.SupplierID = &supplier
			}
			if err := handlers.ValidateUser(&u); err != nil {
				return err
			}

			_, conn, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			u.ID = uuid.NewString()
			if err := db.NewStorage(conn).CreateUser(cmd.Context(), &u); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) created with id %s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&u.Username, "username", "", "login name")
	create.Flags().StringVar(&u.FullName, "name", "", "full name")
	create.Flags().StringVar(&u.Email, "email", "", "e-mail")
	create.Flags().StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, SECRETARIA, ALMOXARIFADO or FORNECEDOR")
	create.Flags().StringVar(&department, "department", "", "department id (SECRETARIA)")
	create.Flags().StringVar(&supplier, "supplier", "", "supplier id (FORNECEDOR)")
	_ = create.MarkFlagRequired("username")

	cmd.AddCommand(create)
	return cmd
}
