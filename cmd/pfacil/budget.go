package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pfacil/pfacil/pkg/budget"
	"github.com/pfacil/pfacil/pkg/models"
)

var (
	categoryEstimated float64
	categoryAssigned  float64

	applyFile string

	assignCategory  int64
	assignEstimated float64
	assignStart     string
	assignEnd       string
)

func newBudgetView(cmd *cobra.Command) (*app, *budget.View, error) {
	app, err := newApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	return app, budget.NewView(app.api, app.logger), nil
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage budget categories and groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.Refresh(cmd.Context()); err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Gestión de Presupuestos"))
		fmt.Printf("Listo para asignar: %s\n\n", positiveStyle.Render(fmt.Sprintf("%.2f", view.ReadyToAssign())))

		for _, group := range view.Groups() {
			fmt.Printf("%s (id %d)\n", titleStyle.Render(group.Name), group.ID)
			printCategories(view, group.ID)
		}
		if ungrouped := view.CategoriesIn(budget.Ungrouped); len(ungrouped) > 0 {
			fmt.Println(titleStyle.Render("Sin grupo"))
			printCategories(view, budget.Ungrouped)
		}
		return nil
	},
}

func printCategories(view *budget.View, groupID int64) {
	categories := view.CategoriesIn(groupID)
	if len(categories) == 0 {
		fmt.Println(faintStyle.Render("  (sin categorías)"))
		return
	}
	for _, c := range categories {
		fmt.Printf("  [%d] %-20s Estimado: %8.2f  Asignado: %8.2f  Gastado: %8.2f\n",
			c.ID, c.Name, c.EstimatedAmount, c.AssignedAmount, view.Spent(c.ID))
	}
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage category groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.AddGroup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Grupo creado."))
		return nil
	},
}

var groupRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a group and its categories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id %q", args[0])
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := view.DeleteGroup(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println("Grupo eliminado.")
		return nil
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <group-id> <name>",
	Short: "Create a category inside a group (group-id 0 = ungrouped)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id %q", args[0])
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.AddCategory(cmd.Context(), groupID, args[1]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Categoría creada."))
		return nil
	},
}

var categoryEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Update a category's estimated/assigned amounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id %q", args[0])
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		var estimated, assigned *float64
		if cmd.Flags().Changed("estimated") {
			estimated = &categoryEstimated
		}
		if cmd.Flags().Changed("assigned") {
			assigned = &categoryAssigned
		}
		if err := view.EditCategory(cmd.Context(), id, estimated, assigned); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Categoría actualizada."))
		return nil
	},
}

var categoryRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id %q", args[0])
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.DeleteCategory(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println("Categoría eliminada.")
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create groups and categories from a YAML manifest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifest, err := budget.LoadManifest(applyFile)
		if err != nil {
			return err
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		if err := view.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := view.Apply(cmd.Context(), manifest); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Presupuesto aplicado."))
		return nil
	},
}

var budgetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		budgets, err := view.Budgets(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range budgets {
			fmt.Printf("[%d] categoría %d | %s → %s | Estimado: %.2f Asignado: %.2f Gastado: %.2f\n",
				b.ID, b.CategoryID, b.PeriodStart, b.PeriodEnd,
				b.EstimatedAmount, b.AssignedAmount, b.SpentAmount)
		}
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Create a budget for a category and period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if assignCategory == 0 || assignStart == "" || assignEnd == "" {
			return fmt.Errorf("--category, --start and --end are required")
		}
		_, view, err := newBudgetView(cmd)
		if err != nil {
			return err
		}
		created, err := view.CreateBudget(cmd.Context(), models.BudgetCreate{
			CategoryID:      assignCategory,
			EstimatedAmount: assignEstimated,
			PeriodStart:     assignStart,
			PeriodEnd:       assignEnd,
		})
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Presupuesto %d creado.", created.ID)))
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Show the unallocated funds figure",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		ready, err := app.api.ReadyToAssign(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Listo para asignar: %.2f\n", ready)
		return nil
	},
}

func init() {
	categoryEditCmd.Flags().Float64Var(&categoryEstimated, "estimated", 0, "Estimated amount")
	categoryEditCmd.Flags().Float64Var(&categoryAssigned, "assigned", 0, "Assigned amount")

	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "budget.yaml", "Manifest file")

	assignCmd.Flags().Int64Var(&assignCategory, "category", 0, "Category id")
	assignCmd.Flags().Float64Var(&assignEstimated, "estimated", 0, "Estimated amount")
	assignCmd.Flags().StringVar(&assignStart, "start", "", "Period start (YYYY-MM-DD)")
	assignCmd.Flags().StringVar(&assignEnd, "end", "", "Period end (YYYY-MM-DD)")

	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRmCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryEditCmd)
	categoryCmd.AddCommand(categoryRmCmd)

	budgetCmd.AddCommand(groupCmd)
	budgetCmd.AddCommand(categoryCmd)
	budgetCmd.AddCommand(applyCmd)
	budgetCmd.AddCommand(budgetsListCmd)
	budgetCmd.AddCommand(assignCmd)
	budgetCmd.AddCommand(readyCmd)

	rootCmd.AddCommand(budgetCmd)
}
