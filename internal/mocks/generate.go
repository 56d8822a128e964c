package mocks

//go:generate mockery --name Source --srcpkg github.com/aevon-lab/aevon-analytics/internal/remote --output ./remote --outpkg remotemocks --with-expecter
//go:generate mockery --name HealthChecker --srcpkg github.com/aevon-lab/aevon-analytics/internal/remote --output ./remote --outpkg remotemocks --with-expecter
